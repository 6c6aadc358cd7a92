// cmd/postmon/decode_cmd.go
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tamzrod/postcode-monitor/internal/catalog"
	"github.com/tamzrod/postcode-monitor/internal/decode"
	xlog "github.com/tamzrod/postcode-monitor/internal/log"
)

var decodeVariant string

var decodeCmd = &cobra.Command{
	Use:   "decode [file]",
	Short: "Decode a captured device log offline using the cached catalog",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		token := cfg.Device.Variant
		if decodeVariant != "" {
			token = decodeVariant
		}
		variant := catalog.ParseConsoleVariant(token)
		if variant == catalog.VariantUnknown {
			return fmt.Errorf("unknown variant %q", token)
		}

		var in io.Reader = cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		syncer := newSynchronizer(cfg.Meta)
		syncer.LoadLocal()
		loader, err := newCatalog(cmd.Context(), syncer)
		if err != nil {
			return err
		}

		return decodeStream(in, cmd.OutOrStdout(), decode.NewDecoder(loader, xlog.WithComponent("decode")), variant)
	},
}

func init() {
	decodeCmd.Flags().StringVar(&decodeVariant, "variant", "", "console variant, overrides device.variant")
}

// decodeStream prints every decodable line of in. Other lines are ignored.
func decodeStream(in io.Reader, out io.Writer, dec *decode.Decoder, variant catalog.ConsoleVariant) error {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		code, ok := dec.Decode(sc.Text(), variant)
		if !ok {
			continue
		}
		if _, err := fmt.Fprintln(out, code.Format()); err != nil {
			return err
		}
	}
	return sc.Err()
}
