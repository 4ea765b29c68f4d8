package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	logp "github.com/charmbracelet/log"
	securitas "github.com/homesec-labs/securitas-direct"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var log = logp.NewWithOptions(os.Stderr, logp.Options{
	ReportTimestamp: true,
	TimeFormat:      time.Kitchen,
	Prefix:          "securitas",
})

var rootCmd = &cobra.Command{
	Use:   "securitas-cli",
	Short: "Command-line client for Securitas Direct alarm installations",
	Long: `Command-line client for Securitas Direct alarm installations.

Credentials come from the environment (or a .env file): USERNAME,
PASSWORD, and COUNTRY. The first run on a new device walks the SMS
device-authorization flow interactively.`,
}

func main() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.AddCommand(installationsCmd, statusCmd, armCmd, disarmCmd, sentinelCmd)
}

func initConfig() {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

// newClient builds a logged-in client from the environment, walking the
// OTP device authorization on stdin when the backend demands it.
func newClient(cmd *cobra.Command) (*securitas.Client, error) {
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		log.SetLevel(logp.DebugLevel)
		securitas.SetLogLevel(logp.DebugLevel)
	}

	cli, err := securitas.New(securitas.Config{
		Username: viper.GetString("USERNAME"),
		Password: viper.GetString("PASSWORD"),
		Country:  viper.GetString("COUNTRY"),
	})
	if err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	_, challenge, err := cli.Login(ctx)
	if err != nil {
		return nil, err
	}
	if challenge == nil {
		return cli, nil
	}

	log.Info("device not authorized yet, an SMS code is required")
	for _, phone := range challenge.Phones {
		fmt.Fprintf(os.Stderr, "  [%d] %s\n", phone.ID, phone.Phone)
	}
	stdin := bufio.NewReader(os.Stdin)
	phoneID, err := promptInt(stdin, "phone id to send the code to")
	if err != nil {
		return nil, err
	}
	if err := cli.RequestOTP(ctx, challenge, phoneID); err != nil {
		return nil, fmt.Errorf("could not request OTP: %w", err)
	}
	code, err := prompt(stdin, "code received by SMS")
	if err != nil {
		return nil, err
	}
	if _, err := cli.SubmitOTP(ctx, challenge, code); err != nil {
		return nil, fmt.Errorf("could not validate device: %w", err)
	}
	return cli, nil
}

// pickInstallation resolves the account and selects the installation
// given by --numinst, defaulting to the only one.
func pickInstallation(ctx context.Context, cli *securitas.Client, numinst string) (securitas.Installation, error) {
	installations, err := cli.ResolveInstallations(ctx)
	if err != nil {
		return securitas.Installation{}, err
	}
	if numinst == "" {
		if len(installations) != 1 {
			return securitas.Installation{}, fmt.Errorf(
				"account has %d installations, pick one with --numinst",
				len(installations),
			)
		}
		return installations[0], nil
	}
	for _, inst := range installations {
		if inst.Number == numinst {
			return inst, nil
		}
	}
	return securitas.Installation{}, fmt.Errorf("no installation %q on this account", numinst)
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
