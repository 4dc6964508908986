package command

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/frantjc/ota"
	xslice "github.com/frantjc/x/slice"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const (
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// EnvPrefix prefixes the environment variables that stand in for flags.
const EnvPrefix = "OTA_"

func retry(fn func() error, retries int) error {
	for i := 0; true; i++ {
		if err := fn(); err == nil {
			break
		} else if i >= retries {
			return err
		}

		time.Sleep(time.Second * time.Duration(i) * 2)
	}

	return nil
}

// setCommon gives cmd the flags, logger and version every ota command shares.
func setCommon(cmd *cobra.Command) *cobra.Command {
	var (
		verbosity int
		config    string
	)

	cmd.PersistentFlags().CountVarP(&verbosity, "verbose", "V", fmt.Sprintf("Verbosity for %s.", cmd.Name()))
	cmd.PersistentFlags().StringVar(&config, "config", "", "YAML file of flag values")
	cmd.PersistentFlags().String("url", "", "Base URL of the ota server")
	cmd.PersistentFlags().String("token", "", "Bearer token to send to the ota server")
	cmd.PersistentFlags().String("username", "", "Username to send to the ota server")
	cmd.PersistentFlags().String("password", "", "Password to send to the ota server")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if err := applyEnv(cmd.Flags()); err != nil {
			return err
		}

		if config != "" {
			if err := applyConfig(cmd.Flags(), config); err != nil {
				return err
			}
		}

		if verbose := os.Getenv(EnvPrefix + "VERBOSE"); verbose != "" && xslice.Some([]string{"1", "y", "yes", "true", "t"}, func(s string, _ int) bool {
			return strings.EqualFold(s, verbose)
		}) {
			verbosity = max(verbosity, 2)
		}

		cmd.SetContext(ota.WithLogger(cmd.Context(), ota.NewLogger(cmd.ErrOrStderr(), verbosity)))

		return nil
	}

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	cmd.Version = ota.SemVer()
	cmd.SetVersionTemplate("{{ .Name }}{{ .Version }} " + runtime.Version() + "\n")

	return cmd
}

// envName is the environment variable that stands in for the flag name.
func envName(name string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// applyEnv sets each flag that was not given on the command line from its
// environment variable, if that is set.
func applyEnv(flags *pflag.FlagSet) error {
	var err error

	flags.VisitAll(func(flag *pflag.Flag) {
		if err != nil || flag.Changed || flag.Name == "verbose" {
			return
		}

		if value, ok := os.LookupEnv(envName(flag.Name)); ok {
			if sErr := flags.Set(flag.Name, value); sErr != nil {
				err = fmt.Errorf("%s: %w", envName(flag.Name), sErr)
			}
		}
	})

	return err
}

// applyConfig sets each flag that is still unset from the YAML mapping of
// flag names to values in the file at name.
func applyConfig(flags *pflag.FlagSet, name string) error {
	b, err := os.ReadFile(name)
	if err != nil {
		return err
	}

	values := map[string]any{}
	if err = yaml.Unmarshal(b, &values); err != nil {
		return fmt.Errorf("parse config %s: %w", name, err)
	}

	for key, value := range values {
		flag := flags.Lookup(key)
		if flag == nil {
			return fmt.Errorf("config %s: unknown flag %s", name, key)
		} else if flag.Changed {
			continue
		}

		if err = flags.Set(key, fmt.Sprint(value)); err != nil {
			return fmt.Errorf("config %s: %s: %w", name, key, err)
		}
	}

	return nil
}

func baseURL(cmd *cobra.Command) (*url.URL, error) {
	if urlstr := cmd.Flag("url").Value.String(); urlstr != "" {
		return url.Parse(urlstr)
	}

	return nil, nil
}

func newClient(cmd *cobra.Command) (*ota.Client, error) {
	base, err := baseURL(cmd)
	if err != nil {
		return nil, err
	}

	return &ota.Client{
		HTTPClient: &http.Client{
			Transport: &authTransport{
				Token:    cmd.Flag("token").Value.String(),
				Username: cmd.Flag("username").Value.String(),
				Password: cmd.Flag("password").Value.String(),
			},
		},
		Base: base,
	}, nil
}

func addOutputFlag(cmd *cobra.Command, output *string) {
	cmd.Flags().StringVarP(output, "output", "o", OutputYAML, fmt.Sprintf("Output format, one of %s or %s", OutputYAML, OutputJSON))
}

func encode(w io.Writer, output string, a any) error {
	switch output {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	case OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(a); err != nil {
			return err
		}
		return enc.Close()
	}

	return fmt.Errorf("unknown output format %s", output)
}
