// Package admincli implements the authkeeper operator tool: producing and
// checking password hashes in the format the server stores.
package admincli

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/authkeeper/internal/buildinfo"
	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
)

var (
	ErrUsage            = errors.New("usage")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrNoMatch          = errors.New("password does not match hash")
)

const usage = `Usage:
  authkeeper-cli hash-password           prompt for a password and print its hash
  authkeeper-cli verify-password <hash>  prompt for a password and check it against hash
  authkeeper-cli version                 print build information
`

type App struct {
	in     *bufio.Reader
	out    io.Writer
	params cryptox.Argon2Params
}

func NewApp(in io.Reader, out io.Writer) *App {
	return &App{in: bufio.NewReader(in), out: out, params: cryptox.DefaultArgon2Params()}
}

// Run dispatches args (without the program name).
func (a *App) Run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.out, usage)
		return ErrUsage
	}

	switch args[0] {
	case "hash-password":
		return a.hashPassword()
	case "verify-password":
		if len(args) != 2 {
			fmt.Fprint(a.out, usage)
			return ErrUsage
		}
		return a.verifyPassword(args[1])
	case "version":
		buildinfo.PrintBuildData(a.out)
		return nil
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	}

	fmt.Fprintf(a.out, "unknown command %q\n", args[0])
	fmt.Fprint(a.out, usage)
	return ErrUsage
}

func (a *App) hashPassword() error {
	pw, err := GetPassword(a.in, "Enter password: ", a.out)
	if err != nil {
		return err
	}
	defer wipe(pw)

	confirm, err := GetPassword(a.in, "Repeat password: ", a.out)
	if err != nil {
		return err
	}
	defer wipe(confirm)

	if !bytes.Equal(pw, confirm) {
		return ErrPasswordMismatch
	}

	hash, err := cryptox.HashPassword(string(pw), a.params)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, hash)
	return nil
}

func (a *App) verifyPassword(hash string) error {
	pw, err := GetPassword(a.in, "Enter password: ", a.out)
	if err != nil {
		return err
	}
	defer wipe(pw)

	if !cryptox.VerifyPassword(string(pw), hash) {
		return ErrNoMatch
	}
	fmt.Fprintln(a.out, "OK")
	return nil
}
