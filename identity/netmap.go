package identity

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	netmapPreamble  = "-----BEGIN TXFIN NETWORK MAP-----"
	netmapPostamble = "-----END TXFIN NETWORK MAP-----"
)

// ParseNetworkMap parses a network map document into a StaticDirectory.
//
// The format is a framed sectioned text document:
//
//	-----BEGIN TXFIN NETWORK MAP-----
//	META
//	Version: 1
//
//	PARTIES
//	Name: alpha
//	Key: ed25519:...
//	Endpoint: 127.0.0.1:7101
//
//	Name: bravo
//	...
//
//	NOTARY
//	Name: notary
//	-----END TXFIN NETWORK MAP-----
func ParseNetworkMap(data []byte) (*StaticDirectory, error) {
	if bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		return nil, errors.New("BOM not allowed")
	}
	if bytes.Contains(data, []byte("\r")) {
		return nil, errors.New("CR line endings not allowed")
	}
	if !bytes.HasPrefix(data, []byte(netmapPreamble)) {
		return nil, errors.New("missing network map preamble")
	}
	if !bytes.HasSuffix(bytes.TrimSpace(data), []byte(netmapPostamble)) {
		return nil, errors.New("missing network map postamble")
	}

	sections := map[string]bool{"META": true, "PARTIES": true, "NOTARY": true}
	reader := bufio.NewReader(bytes.NewReader(data))
	var currSection string
	var parties []Party
	var notaryName string
	for {
		line, err := reader.ReadString('\n')
		if err != nil && err.Error() != "EOF" {
			return nil, err
		}
		trimmed := strings.TrimSpace(line)
		if sections[trimmed] {
			currSection = trimmed
			if err != nil {
				break
			}
			continue
		}
		if currSection == "PARTIES" && strings.HasPrefix(trimmed, "Name: ") {
			p := Party{Name: strings.TrimPrefix(trimmed, "Name: ")}
			keyLine, _ := reader.ReadString('\n')
			keyLine = strings.TrimSpace(keyLine)
			if !strings.HasPrefix(keyLine, "Key: ") {
				return nil, errors.New("expected Key after Name")
			}
			p.Key = strings.TrimPrefix(keyLine, "Key: ")
			epLine, _ := reader.ReadString('\n')
			epLine = strings.TrimSpace(epLine)
			if !strings.HasPrefix(epLine, "Endpoint: ") {
				return nil, errors.New("expected Endpoint after Key")
			}
			p.Endpoint = strings.TrimPrefix(epLine, "Endpoint: ")
			parties = append(parties, p)
		}
		if currSection == "NOTARY" && strings.HasPrefix(trimmed, "Name: ") {
			if notaryName != "" {
				return nil, errors.New("multiple notary entries")
			}
			notaryName = strings.TrimPrefix(trimmed, "Name: ")
		}
		if err != nil {
			break
		}
	}
	if notaryName == "" {
		return nil, errors.New("network map names no notary")
	}
	return NewStaticDirectory(parties, notaryName)
}

// RenderNetworkMap renders a directory back into the network map format.
func RenderNetworkMap(dir *StaticDirectory) ([]byte, error) {
	if dir == nil || len(dir.parties) == 0 {
		return nil, fmt.Errorf("empty directory")
	}
	parties := append([]Party(nil), dir.parties...)
	sort.Slice(parties, func(i, j int) bool { return parties[i].Name < parties[j].Name })

	var sb strings.Builder
	sb.WriteString(netmapPreamble + "\n")
	sb.WriteString("META\nVersion: 1\n\n")
	sb.WriteString("PARTIES\n")
	for i, p := range parties {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("Name: " + p.Name + "\n")
		sb.WriteString("Key: " + p.Key + "\n")
		sb.WriteString("Endpoint: " + p.Endpoint + "\n")
	}
	sb.WriteString("\nNOTARY\n")
	sb.WriteString("Name: " + dir.notary + "\n")
	sb.WriteString(netmapPostamble + "\n")
	return []byte(sb.String()), nil
}
