// Copyright © 2023 Antalpha
//
// This file is part of Antalpha. The full Antalpha copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package config

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PrivAccess/pkg/group"
	"PrivAccess/pkg/pool"
	"PrivAccess/pkg/rbac"
	zkschnorr "PrivAccess/pkg/zk/schnorr"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadShippedConfig(t *testing.T) {
	conf, err := LoadConfig("config.json")
	require.NoError(t, err)
	assert.Equal(t, "101", conf.Doors[0].ID)
	assert.Equal(t, "t1q7hk", conf.Doors[0].GeohashPrefix)
	assert.Equal(t, 300, conf.ReplayWindowSecond)

	params, err := conf.Params()
	require.NoError(t, err)
	assert.True(t, params.Equal(group.Default()))

	guard := conf.ReplayGuard()
	require.NotNil(t, guard)
	guard.Stop()

	pl := pool.NewPool(conf.Workers)
	defer pl.TearDown()
	table, err := rbac.LoadTable(context.Background(), "roles.json", params, pl)
	require.NoError(t, err)
	assert.Equal(t, []string{rbac.RoleAdmin, rbac.RoleFaculty, rbac.RoleStudent}, table.Names())
}

func TestDefaults(t *testing.T) {
	conf, err := LoadConfig(writeConfig(t, `{}`))
	require.NoError(t, err)
	assert.Equal(t, "concat", conf.ChallengeEncoding)
	assert.Equal(t, "sha256", conf.HashAlgorithm)
	require.Len(t, conf.Doors, 1)
	assert.Equal(t, "Computer Lab A", conf.Doors[0].Name)
	assert.Nil(t, conf.ReplayGuard())

	level, err := conf.Level()
	require.NoError(t, err)
	assert.Equal(t, log.InfoLevel, level)
}

func TestCustomGroup(t *testing.T) {
	conf, err := LoadConfig(writeConfig(t, `{"primeHex": "7F7", "generatorHex": "04"}`))
	require.NoError(t, err)
	params, err := conf.Params()
	require.NoError(t, err)
	assert.Equal(t, int64(2039), params.P().Int64())
	assert.Equal(t, int64(1019), params.Q().Int64())
	assert.Equal(t, int64(4), params.G().Int64())

	conf.GeneratorHex = ""
	params, err = conf.Params()
	require.NoError(t, err)
	assert.Equal(t, int64(2), params.G().Int64())

	conf.PrimeHex = "zz"
	_, err = conf.Params()
	assert.Error(t, err)
}

func TestProofOptions(t *testing.T) {
	conf, err := LoadConfig(writeConfig(t, `{"challengeEncoding": "framed", "hashAlgorithm": "blake3"}`))
	require.NoError(t, err)
	opts, err := conf.ProofOptions()
	require.NoError(t, err)
	params, err := conf.Params()
	require.NoError(t, err)

	prover, err := zkschnorr.NewProver(params, big.NewInt(5), opts...)
	require.NoError(t, err)
	proof, err := prover.GenerateProof("t1q7hkab")
	require.NoError(t, err)
	assert.True(t, zkschnorr.NewVerifier(params, opts...).Verify(proof))
	assert.False(t, zkschnorr.NewVerifier(params).Verify(proof), "default options use another transcript")
}

func TestInvalidConfig(t *testing.T) {
	bodies := map[string]string{
		"encoding":     `{"challengeEncoding": "xml"}`,
		"hash":         `{"hashAlgorithm": "md5"}`,
		"level":        `{"logLevel": "loud"}`,
		"window":       `{"replayWindowSecond": -1}`,
		"cache":        `{"replayCacheSize": -1}`,
		"short prefix": `{"doors": [{"id": "1", "geohashPrefix": "t1q"}]}`,
		"no id":        `{"doors": [{"id": " ", "geohashPrefix": "t1q7hk"}]}`,
		"syntax":       `{"doors": `,
		"small group":  `{"groupBits": 16}`,
		"group clash":  `{"groupBits": 64, "primeHex": "7F7"}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = LoadConfig(writeConfig(t, `{"challengeEncoding": "framd"}`))
	assert.False(t, errors.Is(err, os.ErrNotExist), "a present but invalid file is not a missing one")
}

func TestGeneratedGroup(t *testing.T) {
	conf, err := LoadConfig(writeConfig(t, `{"groupBits": 64}`))
	require.NoError(t, err)
	pl := pool.NewPool(0)
	defer pl.TearDown()

	params, err := conf.GroupParams(context.Background(), pl)
	require.NoError(t, err)
	assert.Equal(t, 64, params.P().BitLen())
	assert.NoError(t, params.Validate())

	conf.GroupBits = 0
	params, err = conf.GroupParams(context.Background(), pl)
	require.NoError(t, err)
	assert.True(t, params.Equal(group.Default()))
}

func TestReplayGuardWindow(t *testing.T) {
	conf := Default()
	conf.ReplayWindowSecond = 1
	guard := conf.ReplayGuard()
	require.NotNil(t, guard)
	defer guard.Stop()
	assert.True(t, guard.Record("101", "7"))
	assert.False(t, guard.Record("101", "7"))
	time.Sleep(1100 * time.Millisecond)
	assert.True(t, guard.Record("101", "7"))
}
