// Copyright © 2023 Antalpha
//
// This file is part of Antalpha. The full Antalpha copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

/*
*
The file where main is located, as an example
 1. Load ./config/config.json and the role table
 2. Read stages from the command line and run them in sequence
 1. Setup: hand out the key of a role
 2. Prove: prove knowledge of a role key bound to a location
 3. Scan: tell a door display a device picked up its code
 4. Access: prove and run the door access pipeline
 5. Batch: decide several proofs at one door concurrently
*/
package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"PrivAccess/config"
	"PrivAccess/pkg/access"
	"PrivAccess/pkg/group"
	"PrivAccess/pkg/pool"
	"PrivAccess/pkg/rbac"
	zkschnorr "PrivAccess/pkg/zk/schnorr"
)

var errWrongStage = errors.New("wrong stage name, please check")

// app bundles everything the stages need.
type app struct {
	params     *group.Params
	opts       []zkschnorr.Option
	roles      *rbac.Table
	verifier   *zkschnorr.Verifier
	controller *access.Controller
	pl         *pool.Pool
}

// printTips() function is responsible for printing a menu of available stages.
func printTips() {
	fmt.Println("\nPlease type the name of stage you want to execute:(e.g. Access 101 FACULTY t1q7hkab)")
	fmt.Println("[-] Setup <role>")
	fmt.Println("[-] Prove <role> <geohash>")
	fmt.Println("[-] Scan <door_id>")
	fmt.Println("[-] Access <door_id> <role> <geohash>")
	fmt.Println("[-] Batch <door_id> <geohash> <role> [<role> ...]")
	fmt.Println("[-] Group <bits>")
	fmt.Println("[-] Roles")
	fmt.Println("[-] Mnemonic")
	fmt.Println("[-] Ctrl+c to exit")
	fmt.Printf(">>> ")
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// Setup provisions a device for the requested role.
func Setup(a *app, role string) error {
	log.Infoln("step into Setup func")
	cred, err := a.roles.Provision(role)
	if err != nil {
		log.Errorln(err)
		return err
	}
	if cred.Role == rbac.RoleUnknown {
		log.Warnf("role %q is not in the table, issued a key that opens nothing", role)
	}
	return printJSON(cred)
}

// prove builds a proof for role at geohash with the configured options.
func prove(a *app, role, geohash string) (*zkschnorr.Prover, *zkschnorr.Proof, error) {
	secret, ok := a.roles.Secret(role)
	if !ok {
		return nil, nil, fmt.Errorf("unknown role %q", role)
	}
	prover, err := zkschnorr.NewProver(a.params, secret, a.opts...)
	if err != nil {
		return nil, nil, err
	}
	proof, err := prover.GenerateProof(geohash)
	if err != nil {
		return nil, nil, err
	}
	return prover, proof, nil
}

// Prove prints a proof and its binary envelope.
func Prove(a *app, role, geohash string) error {
	log.Infoln("step into Prove func")
	prover, proof, err := prove(a, role, geohash)
	if err != nil {
		log.Errorln(err)
		return err
	}
	if err = printJSON(proof); err != nil {
		return err
	}
	envelope, err := zkschnorr.NewProofMal(prover, geohash)
	if err != nil {
		log.Errorln("fail to encode proof envelope")
		return err
	}
	if !envelope.VerifyMal(zkschnorr.NewVerifier(a.params, a.opts...)) {
		return errors.New("fresh proof envelope does not verify")
	}
	fmt.Printf("cbor: %s\n", hex.EncodeToString(envelope.Malbuf))
	return nil
}

// Access proves for role at geohash and presents the proof at the door.
func Access(a *app, doorID, role, geohash string) error {
	log.Infoln("step into Access func")
	_, proof, err := prove(a, role, geohash)
	if err != nil {
		log.Errorln(err)
		return err
	}
	d := a.controller.Decide(context.Background(), access.Request{
		DoorID:  doorID,
		Geohash: geohash,
		Proof:   proof,
	})
	fmt.Println(d.Message())
	return nil
}

// Scan publishes a device scan on the door's status hub.
func Scan(a *app, doorID string) error {
	log.Infoln("step into Scan func")
	if err := a.controller.Scan(doorID); err != nil {
		log.Errorln(err)
		return err
	}
	return nil
}

// Batch proves once per role at geohash, checks all proofs on the pool and
// then runs every proof through the access pipeline of doorID.
func Batch(a *app, doorID, geohash string, roles []string) error {
	log.Infoln("step into Batch func")
	proofs := make([]*zkschnorr.Proof, len(roles))
	reqs := make([]access.Request, len(roles))
	for i, role := range roles {
		_, proof, err := prove(a, role, geohash)
		if err != nil {
			log.Errorln(err)
			return err
		}
		proofs[i] = proof
		reqs[i] = access.Request{DoorID: doorID, Geohash: geohash, Proof: proof}
	}
	valid, err := a.verifier.VerifyAll(context.Background(), a.pl, proofs)
	if err != nil {
		log.Errorln("fail to verify batch")
		return err
	}
	decisions, err := a.controller.DecideAll(context.Background(), a.pl, reqs)
	if err != nil {
		log.Errorln("fail to decide batch")
		return err
	}
	for i, d := range decisions {
		fmt.Printf("%-10s proof valid=%t  %s\n", strings.ToUpper(roles[i]), valid[i], d.Message())
	}
	return nil
}

// Group searches a fresh safe-prime group and prints it as config literals.
func Group(a *app, bits string) error {
	log.Infoln("step into Group func")
	var n int
	if _, err := fmt.Sscan(bits, &n); err != nil {
		return errWrongStage
	}
	params, err := group.Generate(context.Background(), rand.Reader, n, a.pl)
	if err != nil {
		log.Errorln(err)
		return err
	}
	return printJSON(map[string]string{
		"primeHex":     fmt.Sprintf("%X", params.P()),
		"generatorHex": fmt.Sprintf("%02X", params.G()),
	})
}

// Roles lists the role table.
func Roles(a *app) error {
	for _, name := range a.roles.Names() {
		perms, _ := a.roles.Permissions(name)
		fmt.Printf("%-10s %s\n", name, strings.Join(perms, ","))
	}
	return nil
}

// Mnemonic prints a fresh mnemonic with the public key it provisions.
func Mnemonic(a *app) error {
	mnemonic, err := rbac.NewMnemonic()
	if err != nil {
		log.Errorln(err)
		return err
	}
	secret, err := rbac.SecretFromMnemonic(a.params, mnemonic, "")
	if err != nil {
		return err
	}
	fmt.Println(mnemonic)
	fmt.Printf("public key: %s\n", a.params.PublicKey(secret))
	return nil
}

// The stepIntoStage function is responsible for executing the logic of the given stage.
func stepIntoStage(a *app, stageString string) error {
	stageAfterSplit := strings.Fields(stageString)
	if len(stageAfterSplit) == 0 {
		return errWrongStage
	}
	log.Debugf("stageAfterSplit is %+v", stageAfterSplit)
	stage, args := stageAfterSplit[0], stageAfterSplit[1:]
	switch {
	case stage == "Setup" && len(args) <= 1:
		role := ""
		if len(args) == 1 {
			role = args[0]
		}
		return Setup(a, role)
	case stage == "Prove" && len(args) == 2:
		return Prove(a, args[0], args[1])
	case stage == "Scan" && len(args) == 1:
		return Scan(a, args[0])
	case stage == "Access" && len(args) == 3:
		return Access(a, args[0], args[1], args[2])
	case stage == "Batch" && len(args) >= 3:
		return Batch(a, args[0], args[1], args[2:])
	case stage == "Group" && len(args) == 1:
		return Group(a, args[0])
	case stage == "Roles" && len(args) == 0:
		return Roles(a)
	case stage == "Mnemonic" && len(args) == 0:
		return Mnemonic(a)
	}
	return errWrongStage
}

// loadConfig reads the configuration. Only a missing file falls back to the
// built-in defaults; a present file that fails to load is an error.
func loadConfig(path string) (*config.LocalConfig, error) {
	conf, err := config.LoadConfig(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Warnf("no configuration at %s, using defaults", path)
		return config.Default(), nil
	}
	if err != nil {
		return nil, err
	}
	return conf, nil
}

// newApp builds the role table and the door controller described by conf.
func newApp(ctx context.Context, conf *config.LocalConfig, pl *pool.Pool) (*app, error) {
	params, err := conf.GroupParams(ctx, pl)
	if err != nil {
		return nil, err
	}
	opts, err := conf.ProofOptions()
	if err != nil {
		return nil, err
	}
	var roles *rbac.Table
	if conf.RolesPath != "" {
		roles, err = rbac.LoadTable(ctx, conf.RolesPath, params, pl)
	} else {
		roles, err = rbac.DefaultTable(ctx, params, pl)
	}
	if err != nil {
		return nil, err
	}
	doors, err := access.NewRegistry(conf.Doors)
	if err != nil {
		return nil, err
	}

	var controllerOpts []access.ControllerOption
	if guard := conf.ReplayGuard(); guard != nil {
		controllerOpts = append(controllerOpts, access.WithReplayGuard(guard))
	}
	verifier := zkschnorr.NewVerifier(params, opts...)
	return &app{
		params:     params,
		opts:       opts,
		roles:      roles,
		verifier:   verifier,
		controller: access.NewController(doors, verifier, roles, controllerOpts...),
		pl:         pl,
	}, nil
}

// watchDoors logs every status update of every configured door.
func watchDoors(a *app) {
	for _, id := range a.controller.Doors().IDs() {
		updates, _ := a.controller.Hub().Subscribe(id)
		go func(id string, updates <-chan string) {
			for status := range updates {
				log.Infof("door %s: %s", id, status)
			}
		}(id, updates)
	}
}

// The main function is the entry point of the program.
func main() {
	conf, err := loadConfig(config.DefaultPath)
	if err != nil {
		log.Fatal(err)
	}
	level, err := conf.Level()
	if err != nil {
		log.Fatal(err)
	}
	log.SetLevel(level)

	pl := pool.NewPool(conf.Workers)
	defer pl.TearDown()

	a, err := newApp(context.Background(), conf, pl)
	if err != nil {
		log.Fatal(err)
	}
	watchDoors(a)

	reader := bufio.NewReader(os.Stdin)
	for {
		printTips()
		result, _, err := reader.ReadLine()
		if err != nil {
			log.Errorln("fail to read stage from command line")
			return
		}
		if err = stepIntoStage(a, string(result)); err != nil {
			log.Errorln(err)
		}
	}
}
