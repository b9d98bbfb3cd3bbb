// netmapgen emits a deterministic development network map plus the matching
// seed hex per party, for local multi-node runs and examples.
package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"xdao.co/txfin/identity"
)

func seedFor(b byte) []byte {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = b
	}
	return seed
}

func main() {
	basePort := flag.Int("base-port", 7800, "first endpoint port; parties count upward")
	flag.Parse()

	names := []string{"Alice", "Bob", "Charlie", "Notary"}
	var parties []identity.Party
	for i, name := range names {
		seed := seedFor(byte(0xA0 + i))
		signer, err := identity.NewEd25519Signer(name, seed)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		p := signer.Party()
		p.Endpoint = fmt.Sprintf("127.0.0.1:%d", *basePort+i)
		parties = append(parties, p)
		fmt.Fprintf(os.Stderr, "# %s seed-hex %s\n", name, hex.EncodeToString(seed))
	}

	dir, err := identity.NewStaticDirectory(parties, "Notary")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	b, err := identity.RenderNetworkMap(dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Stdout.Write(b)
}
