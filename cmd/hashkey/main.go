// cmd/hashkey/main.go
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/licensegate/internal/utils"
)

// hashkey prints the bcrypt hash to store in ADMIN_API_KEY. The key is read
// from the first argument or stdin; -generate creates a random one.
func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		logrus.WithError(err).Fatal("Failed to hash admin key")
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	flags := flag.NewFlagSet("hashkey", flag.ContinueOnError)
	generate := flags.Bool("generate", false, "generate a random admin key")
	if err := flags.Parse(args); err != nil {
		return err
	}

	var key string
	switch {
	case *generate:
		generated, err := utils.GenerateSecretHex(24)
		if err != nil {
			return fmt.Errorf("failed to generate key: %w", err)
		}
		key = generated
		fmt.Fprintf(stdout, "key:  %s\n", key)
	case flags.NArg() > 0:
		key = flags.Arg(0)
	default:
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read key: %w", err)
		}
		key = line
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("admin key is empty")
	}

	hash, err := utils.HashAPIKey(key)
	if err != nil {
		return fmt.Errorf("failed to hash key: %w", err)
	}
	if *generate {
		fmt.Fprintf(stdout, "hash: %s\n", hash)
	} else {
		fmt.Fprintln(stdout, hash)
	}
	return nil
}
