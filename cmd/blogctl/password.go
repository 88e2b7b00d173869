package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/ai-blog-cms/internal/adapter/httpserver"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Print an argon2id hash for ADMIN_PASSWORD_HASH",
	Long:  "Reads the password from the argument or, when omitted, from the first line of stdin.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var pw string
		if len(args) == 1 {
			pw = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return errors.New("password required")
			}
			pw = strings.TrimRight(line, "\r\n")
		}
		hash, err := httpserver.HashPassword(pw, httpserver.DefaultArgon2Params)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}
