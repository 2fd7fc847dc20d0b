package main

import (
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/lti"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	isTerminalFunc   = term.IsTerminal   // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db      *sqlx.DB
	ltiSvc  lti.ServiceInterface
	mailSvc core.EmailService
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Println("  addconsumer -name NAME [-key KEY] [-secret SECRET] [-email ADDRESS] - register a Tool Consumer")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addConsumerCmd := flag.NewFlagSet("addconsumer", flag.ExitOnError)
	addConsumerName := addConsumerCmd.String("name", "", "The consumer's display name.")
	addConsumerKey := addConsumerCmd.String("key", "", "The consumer key. Generated when omitted.")
	addConsumerSecret := addConsumerCmd.String("secret", "", "The shared secret. Prompted or generated when omitted.")
	addConsumerEmail := addConsumerCmd.String("email", "", "Email the credentials to this address.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "addconsumer":
		if err := addConsumerCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addConsumerName == "" {
			addConsumerCmd.Usage()
			return errHelp
		}
		secret := *addConsumerSecret
		if secret == "" && isTerminalFunc(syscall.Stdin) {
			fmt.Print("Enter secret (blank to generate):")
			pwd, err := readPasswordFunc(syscall.Stdin)
			fmt.Println()
			if err != nil {
				return err
			}
			secret = string(pwd)
		}
		return cli.addConsumer(*addConsumerName, *addConsumerKey, secret, *addConsumerEmail)
	default:
		cli.printUsage()
		return errHelp
	}
}
