// txfin-noded runs one party's node: the gRPC surface for proposal
// endorsement, notarization (when this party is the network map's notary),
// finality delivery and committed-state fetch.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"xdao.co/txfin/auction"
	"xdao.co/txfin/flow"
	"xdao.co/txfin/identity"
	"xdao.co/txfin/notary"
	"xdao.co/txfin/resolve"
	"xdao.co/txfin/rpc"
	"xdao.co/txfin/vault/sqlitevault"
)

func main() {
	fs := flag.NewFlagSet("txfin-noded", flag.ExitOnError)
	listen := fs.String("listen", "127.0.0.1:7800", "listen address")
	data := fs.String("data", "txfin.db", "ledger database path")
	netmap := fs.String("netmap", "netmap.txt", "network map file")
	party := fs.String("party", "", "this node's party name")
	seedFile := fs.String("seed-file", "", "ed25519 seed file (32 bytes)")
	hashAlg := fs.String("hash-alg", "sha256", "signing digest: sha256, sha512 or sha3-256")
	rpcTimeout := fs.Duration("rpc-timeout", 30*time.Second, "per-RPC timeout for outbound calls")
	logLevel := fs.String("log-level", "info", "logrus level")
	haltOnViolation := fs.Bool("halt-on-violation", false, "treat a certified transaction failing local validation as fatal")

	_ = fs.Parse(os.Args[1:])

	log := logrus.New()
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log.SetLevel(level)

	if *party == "" || *seedFile == "" {
		fmt.Fprintln(os.Stderr, "-party and -seed-file are required")
		os.Exit(2)
	}

	mapBytes, err := os.ReadFile(*netmap)
	if err != nil {
		log.WithError(err).Fatal("read network map")
	}
	dir, err := identity.ParseNetworkMap(mapBytes)
	if err != nil {
		log.WithError(err).Fatal("parse network map")
	}

	seed, err := identity.LoadSeedFile(*seedFile)
	if err != nil {
		log.WithError(err).Fatal("load seed")
	}
	signer, err := identity.NewEd25519Signer(*party, seed)
	if err != nil {
		log.WithError(err).Fatal("build signer")
	}
	if signer, err = signer.WithHashAlg(*hashAlg); err != nil {
		log.WithError(err).Fatal("select digest")
	}
	registered, ok := dir.Lookup(*party)
	if !ok {
		log.Fatalf("party %s is not in the network map", *party)
	}
	if registered.Key != signer.Party().Key {
		log.Fatalf("seed does not match the network map key for %s", *party)
	}

	auction.Register()

	store, err := sqlitevault.Open(*data)
	if err != nil {
		log.WithError(err).Fatal("open ledger")
	}
	defer store.Close()

	dialer := rpc.NewPeerDialer(dir, rpc.DialOptions{RPCTimeout: *rpcTimeout})
	defer dialer.Close()

	var fetchers []resolve.Fetcher
	for _, p := range dir.AllParties() {
		if p.Name == *party {
			continue
		}
		c, err := dialer.Client(p.Name)
		if err != nil {
			log.WithError(err).Fatalf("dial %s", p.Name)
		}
		fetchers = append(fetchers, c)
	}
	resolver := resolve.New(store, fetchers...)

	var not *notary.Notary
	if dir.Notary().Name == *party {
		if not, err = notary.New(signer, dir, store); err != nil {
			log.WithError(err).Fatal("build notary")
		}
		log.Info("serving as the network notary")
	}

	policy := flow.Reject
	if *haltOnViolation {
		policy = flow.Halt
	}
	node, err := flow.NewNode(flow.Config{
		Signer:    signer,
		Directory: dir,
		Vault:     store,
		Resolver:  resolver,
		Notary:    not,
		Dialer:    dialer,
		Log:       log,
		Options: flow.Options{
			Policy: policy,
			OnFatal: func(err error) {
				log.WithError(err).Fatal("certified transaction failed local validation")
			},
		},
	})
	if err != nil {
		log.WithError(err).Fatal("build node")
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		log.WithError(err).Fatal("listen")
	}
	defer lis.Close()

	s := grpc.NewServer()
	rpc.RegisterNodeServer(s, &rpc.Server{Backend: node})

	log.WithFields(logrus.Fields{"party": *party, "listen": lis.Addr().String()}).Info("txfin-noded up")
	if err := s.Serve(lis); err != nil {
		log.WithError(err).Fatal("serve")
	}
}
