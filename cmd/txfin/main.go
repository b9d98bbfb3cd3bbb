// txfin is the operator CLI: key and network map bootstrap, ledger
// inspection, and running auction protocol instances against a network.
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"xdao.co/txfin/auction"
	"xdao.co/txfin/flow"
	"xdao.co/txfin/identity"
	"xdao.co/txfin/resolve"
	"xdao.co/txfin/rpc"
	"xdao.co/txfin/tx"
	"xdao.co/txfin/vault/sqlitevault"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "netmap":
		return cmdNetmap(args[1:], out, errOut)
	case "vault":
		return cmdVault(args[1:], out, errOut)
	case "create-auction":
		return cmdCreateAuction(args[1:], out, errOut)
	case "bid":
		return cmdBid(args[1:], out, errOut)
	case "close-auction":
		return cmdCloseAuction(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "txfin: transaction finality network CLI")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  txfin key init --name <party> --out <seed-file> [--seed-hex <64hex>] [--endpoint <host:port>] [--force]")
	fmt.Fprintln(w, "  txfin netmap check <file>")
	fmt.Fprintln(w, "  txfin vault ls --data <db>")
	fmt.Fprintln(w, "  txfin vault show --data <db> --tx <id>")
	fmt.Fprintln(w, "  txfin vault head --data <db> --id <uuid>")
	fmt.Fprintln(w, "  txfin create-auction <node flags> --base-price <n> --deadline <RFC3339> [--item <uuid>]")
	fmt.Fprintln(w, "  txfin bid <node flags> --auction <uuid> --amount <n>")
	fmt.Fprintln(w, "  txfin close-auction <node flags> --auction <uuid>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Node flags: --netmap <file> --party <name> --seed-file <file> --data <db>")
}

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 || args[0] != "init" {
		fmt.Fprintln(errOut, "usage: txfin key init --name <party> --out <seed-file> [--seed-hex <64hex>] [--endpoint <host:port>] [--force]")
		return 2
	}
	fs := flag.NewFlagSet("key init", flag.ExitOnError)
	name := fs.String("name", "", "party name")
	outPath := fs.String("out", "", "seed file path")
	seedHex := fs.String("seed-hex", "", "32-byte ed25519 seed, hex encoded")
	endpoint := fs.String("endpoint", "", "party endpoint for the network map entry")
	force := fs.Bool("force", false, "overwrite an existing seed file")
	_ = fs.Parse(args[1:])

	if *name == "" || *outPath == "" {
		fmt.Fprintln(errOut, "--name and --out are required")
		return 2
	}
	if err := identity.CheckName(*name); err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	var seed []byte
	if *seedHex != "" {
		var err error
		if seed, err = identity.ParseSeedHex(*seedHex); err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
	} else {
		seed = make([]byte, ed25519.SeedSize)
		if _, err := rand.Read(seed); err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
	}
	if err := identity.SaveSeedFile(*outPath, seed, *force); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}

	signer, err := identity.NewEd25519Signer(*name, seed)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	// netmap PARTIES entry, ready to paste
	fmt.Fprintf(out, "Name: %s\n", *name)
	fmt.Fprintf(out, "Key: %s\n", signer.Party().Key)
	if *endpoint != "" {
		fmt.Fprintf(out, "Endpoint: %s\n", *endpoint)
	}
	return 0
}

func cmdNetmap(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) != 2 || args[0] != "check" {
		fmt.Fprintln(errOut, "usage: txfin netmap check <file>")
		return 2
	}
	b, err := os.ReadFile(args[1])
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	dir, err := identity.ParseNetworkMap(b)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	for _, p := range dir.AllParties() {
		role := "party"
		if p.Name == dir.Notary().Name {
			role = "notary"
		}
		fmt.Fprintf(out, "%s\t%s\t%s\n", p.Name, role, p.Endpoint)
	}
	return 0
}

func cmdVault(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: txfin vault {ls|show|head} ...")
		return 2
	}
	sub := args[0]
	fs := flag.NewFlagSet("vault "+sub, flag.ExitOnError)
	data := fs.String("data", "", "ledger database path")
	txID := fs.String("tx", "", "transaction identifier")
	id := fs.String("id", "", "state linear identifier")
	_ = fs.Parse(args[1:])

	if *data == "" {
		fmt.Fprintln(errOut, "--data is required")
		return 2
	}
	store, err := sqlitevault.Open(*data)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer store.Close()

	switch sub {
	case "ls":
		ids, err := store.ListTransactions()
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		for _, id := range ids {
			fmt.Fprintln(out, id)
		}
		return 0
	case "show":
		if *txID == "" {
			fmt.Fprintln(errOut, "--tx is required")
			return 2
		}
		f, err := store.GetTransaction(*txID)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		b, err := tx.EncodeFinalized(f)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		fmt.Fprintln(out, string(b))
		return 0
	case "head":
		linearID, err := uuid.Parse(*id)
		if err != nil {
			fmt.Fprintln(errOut, "--id must be a uuid")
			return 2
		}
		body, err := store.Head(linearID)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		b, err := tx.EncodeState(body)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		fmt.Fprintln(out, string(b))
		return 0
	default:
		fmt.Fprintf(errOut, "unknown vault command: %s\n", sub)
		return 2
	}
}

// nodeFlags is the shared wiring for commands that run protocol instances.
type nodeFlags struct {
	netmap   *string
	party    *string
	seedFile *string
	data     *string
}

func addNodeFlags(fs *flag.FlagSet) nodeFlags {
	return nodeFlags{
		netmap:   fs.String("netmap", "netmap.txt", "network map file"),
		party:    fs.String("party", "", "this party's name"),
		seedFile: fs.String("seed-file", "", "ed25519 seed file"),
		data:     fs.String("data", "txfin.db", "ledger database path"),
	}
}

func buildNode(nf nodeFlags, errOut io.Writer) (*flow.Node, func(), error) {
	if *nf.party == "" || *nf.seedFile == "" {
		return nil, nil, fmt.Errorf("--party and --seed-file are required")
	}
	b, err := os.ReadFile(*nf.netmap)
	if err != nil {
		return nil, nil, err
	}
	dir, err := identity.ParseNetworkMap(b)
	if err != nil {
		return nil, nil, err
	}
	seed, err := identity.LoadSeedFile(*nf.seedFile)
	if err != nil {
		return nil, nil, err
	}
	signer, err := identity.NewEd25519Signer(*nf.party, seed)
	if err != nil {
		return nil, nil, err
	}

	auction.Register()

	store, err := sqlitevault.Open(*nf.data)
	if err != nil {
		return nil, nil, err
	}
	dialer := rpc.NewPeerDialer(dir, rpc.DialOptions{RPCTimeout: 30 * time.Second})

	var fetchers []resolve.Fetcher
	for _, p := range dir.AllParties() {
		if p.Name == *nf.party {
			continue
		}
		c, err := dialer.Client(p.Name)
		if err != nil {
			_ = store.Close()
			_ = dialer.Close()
			return nil, nil, err
		}
		fetchers = append(fetchers, c)
	}

	log := logrus.New()
	log.SetOutput(errOut)
	log.SetLevel(logrus.WarnLevel)

	node, err := flow.NewNode(flow.Config{
		Signer:    signer,
		Directory: dir,
		Vault:     store,
		Resolver:  resolve.New(store, fetchers...),
		Dialer:    dialer,
		Log:       log,
	})
	if err != nil {
		_ = store.Close()
		_ = dialer.Close()
		return nil, nil, err
	}
	cleanup := func() {
		_ = dialer.Close()
		_ = store.Close()
	}
	return node, cleanup, nil
}

func cmdCreateAuction(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("create-auction", flag.ExitOnError)
	nf := addNodeFlags(fs)
	basePrice := fs.Uint64("base-price", 0, "minimum bid, minor units")
	deadline := fs.String("deadline", "", "bid deadline, RFC 3339")
	item := fs.String("item", "", "asset lineage uuid to reference (optional)")
	_ = fs.Parse(args)

	when, err := time.Parse(time.RFC3339, *deadline)
	if err != nil {
		fmt.Fprintln(errOut, "--deadline must be RFC 3339")
		return 2
	}
	params := auction.CreateParams{BasePrice: *basePrice, BidDeadline: when}
	if *item != "" {
		if params.Item, err = uuid.Parse(*item); err != nil {
			fmt.Fprintln(errOut, "--item must be a uuid")
			return 2
		}
	}

	node, cleanup, err := buildNode(nf, errOut)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer cleanup()

	a, report, err := auction.Create(context.Background(), node, params)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	fmt.Fprintf(out, "auction: %s\n", a.LinearID)
	printReport(out, report)
	return 0
}

func cmdBid(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("bid", flag.ExitOnError)
	nf := addNodeFlags(fs)
	auctionID := fs.String("auction", "", "auction lineage uuid")
	amount := fs.Uint64("amount", 0, "bid amount, minor units")
	_ = fs.Parse(args)

	id, err := uuid.Parse(*auctionID)
	if err != nil {
		fmt.Fprintln(errOut, "--auction must be a uuid")
		return 2
	}
	node, cleanup, err := buildNode(nf, errOut)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer cleanup()

	bid, report, err := auction.PlaceBid(context.Background(), node, id, *amount)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	fmt.Fprintf(out, "bid: %s v%d amount=%d\n", bid.LinearID, bid.Version, bid.Amount)
	printReport(out, report)
	return 0
}

func cmdCloseAuction(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("close-auction", flag.ExitOnError)
	nf := addNodeFlags(fs)
	auctionID := fs.String("auction", "", "auction lineage uuid")
	_ = fs.Parse(args)

	id, err := uuid.Parse(*auctionID)
	if err != nil {
		fmt.Fprintln(errOut, "--auction must be a uuid")
		return 2
	}
	node, cleanup, err := buildNode(nf, errOut)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer cleanup()

	closed, report, err := auction.Close(context.Background(), node, id)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closed.HighestBidder == "" {
		fmt.Fprintf(out, "auction %s closed with no bids\n", closed.LinearID)
	} else {
		fmt.Fprintf(out, "auction %s closed: %s wins at %d\n", closed.LinearID, closed.HighestBidder, closed.HighestBid)
	}
	printReport(out, report)
	return 0
}

func printReport(w io.Writer, report *flow.Report) {
	fmt.Fprintf(w, "tx: %s\n", report.TxID)
	if len(report.Delivered) > 0 {
		fmt.Fprintf(w, "delivered: %s\n", strings.Join(report.Delivered, ", "))
	}
	if len(report.Unreached) > 0 {
		fmt.Fprintf(w, "unreached: %s\n", strings.Join(report.Unreached, ", "))
	}
}
