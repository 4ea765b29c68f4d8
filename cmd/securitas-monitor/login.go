package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	securitas "github.com/homesec-labs/securitas-direct"
)

// login authenticates the client, walking the interactive OTP device
// authorization on stdin when the backend demands it.
func login(ctx context.Context, cli *securitas.Client, cfg Config) error {
	_, challenge, err := cli.Login(ctx)
	if err != nil {
		return err
	}
	if challenge == nil {
		log.Info("logged in")
		return nil
	}
	if !cfg.OTP {
		return fmt.Errorf("backend requires device authorization, restart with OTP=true")
	}

	log.Info("device not authorized yet, starting OTP flow")
	for _, phone := range challenge.Phones {
		fmt.Fprintf(os.Stderr, "  [%d] %s\n", phone.ID, phone.Phone)
	}
	stdin := bufio.NewReader(os.Stdin)

	phoneID, err := promptInt(stdin, "phone id to send the code to")
	if err != nil {
		return err
	}
	if err := cli.RequestOTP(ctx, challenge, phoneID); err != nil {
		return fmt.Errorf("could not request OTP: %w", err)
	}

	code, err := prompt(stdin, "code received by SMS")
	if err != nil {
		return err
	}
	if _, err := cli.SubmitOTP(ctx, challenge, code); err != nil {
		return fmt.Errorf("could not validate device: %w", err)
	}
	log.Info("device authorized, logged in")
	return nil
}

func prompt(stdin *bufio.Reader, what string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", what)
	line, err := stdin.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("could not read %s: %w", what, err)
	}
	return strings.TrimSpace(line), nil
}

func promptInt(stdin *bufio.Reader, what string) (int, error) {
	line, err := prompt(stdin, what)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(line)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", line)
	}
	return n, nil
}
