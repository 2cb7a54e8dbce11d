// Package main generates a CA plus server and client certificates for the
// diagnostics server and writes them under a directory (default "certs").
package main

import (
	"crypto/x509"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/atinyakov/sharedpasswords/internal/certgen"
)

func main() {
	dir := flag.String("dir", "certs", "output directory")
	hosts := flag.String("hosts", "localhost,127.0.0.1", "comma-separated server names and IPs")
	client := flag.String("client", "operator", "client certificate common name")
	flag.Parse()

	if err := run(*dir, strings.Split(*hosts, ","), *client); err != nil {
		fmt.Fprintln(os.Stderr, "certgen:", err)
		os.Exit(1)
	}
	fmt.Printf("Certificates generated into %s\n", *dir)
}

func run(dir string, hosts []string, client string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	ca, err := certgen.NewAuthority("sharedpasswords CA")
	if err != nil {
		return err
	}
	certPEM, keyPEM, err := ca.PEM()
	if err != nil {
		return err
	}
	if err := certgen.WritePair(filepath.Join(dir, "ca.crt"), filepath.Join(dir, "ca.key"), certPEM, keyPEM); err != nil {
		return err
	}

	certPEM, keyPEM, err = ca.Issue(hosts[0], x509.ExtKeyUsageServerAuth, hosts...)
	if err != nil {
		return err
	}
	if err := certgen.WritePair(filepath.Join(dir, "server.crt"), filepath.Join(dir, "server.key"), certPEM, keyPEM); err != nil {
		return err
	}

	certPEM, keyPEM, err = ca.Issue(client, x509.ExtKeyUsageClientAuth)
	if err != nil {
		return err
	}
	return certgen.WritePair(filepath.Join(dir, "client.crt"), filepath.Join(dir, "client.key"), certPEM, keyPEM)
}
