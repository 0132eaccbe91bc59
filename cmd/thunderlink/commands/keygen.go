package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/opd-ai/thunderlink/crypto"
	"github.com/spf13/cobra"
)

func (c *cli) keygenCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a node key and store it in the key file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.config.Node.KeyFile
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("key file %s exists, use --force to replace it", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			kp, err := crypto.GenerateKeyPair()
			if err != nil {
				return err
			}
			defer crypto.WipeKeyPair(kp)

			if err := crypto.SaveNodeKey(path, kp, []byte(c.passphrase)); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Node key written to %s\nPublic key: %s\n",
				path, crypto.FormatPublicKey(kp.Public))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing key file")
	return cmd
}
