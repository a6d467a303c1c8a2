// Copyright © 2023 Antalpha
//
// This file is part of Antalpha. The full Antalpha copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package config

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"PrivAccess/pkg/access"
	"PrivAccess/pkg/group"
	"PrivAccess/pkg/hash"
	"PrivAccess/pkg/math/sample"
	"PrivAccess/pkg/pool"
	zkschnorr "PrivAccess/pkg/zk/schnorr"
)

// DefaultPath is where the CLI looks for its configuration.
const DefaultPath = "./config/config.json"

const (
	defaultReplayCacheSize = 1024
)

// LocalConfig struct represents the local configuration of a door controller.
type LocalConfig struct {
	//Hex literal of the safe prime P. Empty selects the built-in 1024-bit group.
	PrimeHex string `json:"primeHex"`
	//Hex literal of the generator G. Empty selects 2.
	GeneratorHex string `json:"generatorHex"`
	//Size in bits of a freshly generated safe-prime group. Zero keeps the literals above.
	GroupBits int `json:"groupBits"`
	//Challenge transcript, "concat" or "framed".
	ChallengeEncoding string `json:"challengeEncoding"`
	//Hash used for the challenge, "sha256", "sha3-256" or "blake3".
	HashAlgorithm string `json:"hashAlgorithm"`
	//Path to the role table. Empty selects the built-in roles.
	RolesPath string `json:"rolesPath"`
	//Doors guarded by this controller. Empty selects the built-in doors.
	Doors []access.Door `json:"doors"`
	//Seconds a commitment stays burned after it opened a door. Zero disables the replay guard.
	ReplayWindowSecond int `json:"replayWindowSecond"`
	//Maximum number of remembered commitments.
	ReplayCacheSize int64 `json:"replayCacheSize"`
	//Worker count of the pool, zero means one per CPU.
	Workers int `json:"workers"`
	//logrus level name.
	LogLevel string `json:"logLevel"`
}

// Default returns the configuration used when no file is present.
func Default() *LocalConfig {
	return &LocalConfig{
		ChallengeEncoding: zkschnorr.EncodingConcat.String(),
		HashAlgorithm:     hash.SHA256.String(),
		Doors:             access.DefaultDoors(),
		LogLevel:          log.InfoLevel.String(),
	}
}

// LoadConfig reads the JSON configuration at path. Fields missing from the
// file keep their defaults.
func LoadConfig(path string) (*LocalConfig, error) {
	jsonFile, err := os.Open(path)
	if err != nil {
		log.Errorf("fail open %s", path)
		return nil, errors.Wrap(err, "config: open")
	}
	log.Infof("successfully open %s", path)
	defer jsonFile.Close()

	// Read the contents of the file
	byteValue, err := io.ReadAll(jsonFile)
	if err != nil {
		return nil, errors.Wrap(err, "config: read")
	}
	conf := Default()
	conf.Doors = nil
	err = json.Unmarshal(byteValue, conf)
	if err != nil {
		log.Errorf("fail unmarshal %s", path)
		return nil, errors.Wrap(err, "config: decode")
	}
	if len(conf.Doors) == 0 {
		conf.Doors = access.DefaultDoors()
	}
	if err = conf.Validate(); err != nil {
		return nil, err
	}
	log.Infof("done unmarshal %s", path)
	return conf, nil
}

// Validate checks every field that can be checked without building the group.
func (conf *LocalConfig) Validate() error {
	if _, err := conf.ProofOptions(); err != nil {
		return err
	}
	if _, err := conf.Level(); err != nil {
		return err
	}
	if conf.GroupBits != 0 {
		if conf.GroupBits < sample.MinSafePrimeBits {
			return errors.Errorf("config: groupBits %d below %d", conf.GroupBits, sample.MinSafePrimeBits)
		}
		if conf.PrimeHex != "" || conf.GeneratorHex != "" {
			return errors.New("config: groupBits conflicts with primeHex/generatorHex")
		}
	}
	if conf.ReplayWindowSecond < 0 {
		return errors.Errorf("config: negative replayWindowSecond %d", conf.ReplayWindowSecond)
	}
	if conf.ReplayCacheSize < 0 {
		return errors.Errorf("config: negative replayCacheSize %d", conf.ReplayCacheSize)
	}
	for _, d := range conf.Doors {
		if strings.TrimSpace(d.ID) == "" {
			return errors.New("config: door without id")
		}
		if len(d.GeohashPrefix) < access.MinGeofencePrefix {
			return errors.Errorf("config: door %s geohashPrefix %q shorter than %d", d.ID, d.GeohashPrefix, access.MinGeofencePrefix)
		}
	}
	return nil
}

// Params builds the group. The built-in group is shared, a custom one is
// checked before use.
func (conf *LocalConfig) Params() (*group.Params, error) {
	if conf.PrimeHex == "" && conf.GeneratorHex == "" {
		return group.Default(), nil
	}
	primeHex, generatorHex := conf.PrimeHex, conf.GeneratorHex
	if primeHex == "" {
		primeHex = group.PrimeHex
	}
	if generatorHex == "" {
		generatorHex = group.GeneratorHex
	}
	params, err := group.New(primeHex, generatorHex)
	if err != nil {
		return nil, errors.Wrap(err, "config: group")
	}
	return params, nil
}

// GroupParams returns Params, or a group over a fresh safe prime searched on
// pl when GroupBits is set.
func (conf *LocalConfig) GroupParams(ctx context.Context, pl *pool.Pool) (*group.Params, error) {
	if conf.GroupBits == 0 {
		return conf.Params()
	}
	log.Infof("generating a %d-bit group", conf.GroupBits)
	params, err := group.Generate(ctx, rand.Reader, conf.GroupBits, pl)
	if err != nil {
		return nil, errors.Wrap(err, "config: generate group")
	}
	return params, nil
}

// ProofOptions maps the challenge settings onto prover and verifier options.
func (conf *LocalConfig) ProofOptions() ([]zkschnorr.Option, error) {
	var opts []zkschnorr.Option
	if conf.ChallengeEncoding != "" {
		enc, err := zkschnorr.ParseEncoding(conf.ChallengeEncoding)
		if err != nil {
			return nil, errors.Wrap(err, "config: challengeEncoding")
		}
		opts = append(opts, zkschnorr.WithEncoding(enc))
	}
	if conf.HashAlgorithm != "" {
		alg, err := hash.ParseAlgorithm(conf.HashAlgorithm)
		if err != nil {
			return nil, errors.Wrap(err, "config: hashAlgorithm")
		}
		opts = append(opts, zkschnorr.WithHash(alg))
	}
	return opts, nil
}

// Level parses LogLevel, defaulting to info.
func (conf *LocalConfig) Level() (log.Level, error) {
	if conf.LogLevel == "" {
		return log.InfoLevel, nil
	}
	level, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		return 0, errors.Wrap(err, "config: logLevel")
	}
	return level, nil
}

// ReplayGuard returns a guard sized from the configuration, or nil when the
// replay window is disabled.
func (conf *LocalConfig) ReplayGuard() *access.ReplayGuard {
	if conf.ReplayWindowSecond == 0 {
		return nil
	}
	size := conf.ReplayCacheSize
	if size == 0 {
		size = defaultReplayCacheSize
	}
	return access.NewReplayGuard(size, time.Duration(conf.ReplayWindowSecond)*time.Second)
}
