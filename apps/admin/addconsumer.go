package main

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/darasahq/darasa/core"
)

// addConsumer registers a Tool Consumer and prints its credentials. The
// secret is shown exactly once; it is not recoverable later.
func (cli *commandLine) addConsumer(name, key, secret, email string) error {
	consumer, err := cli.ltiSvc.CreateConsumer(context.Background(), name, key, secret)
	if err != nil {
		return err
	}

	fmt.Printf("consumer %q created\n", consumer.Name)
	fmt.Printf("  key:    %s\n", consumer.Key)
	fmt.Printf("  secret: %s\n", consumer.Secret)

	if email != "" {
		addr, err := mail.ParseAddress(email)
		if err != nil {
			return err
		}
		cli.mailSvc.SendMessages(&core.EmailMessage{
			To:      []mail.Address{*addr},
			Subject: "Tool Consumer credentials",
			Body: fmt.Sprintf(
				"Consumer: %s\nKey: %s\nSecret: %s\n",
				consumer.Name, consumer.Key, consumer.Secret,
			),
		})
	}
	return nil
}
