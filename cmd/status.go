package cmd

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/chukul/s3mirror/internal"
	"github.com/spf13/cobra"
)

var (
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("40")).Bold(true)
	expiredStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the cached temporary session for the temp profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := &internal.ProfileStore{Path: credentialsFile}

		p, err := store.ReadProfile(tempProfile)
		if err != nil {
			return err
		}
		if p == nil {
			fmt.Printf("No cached session under profile %q in %s\n", tempProfile, credentialsFile)
			return nil
		}

		fmt.Printf("%s %s\n", labelStyle.Render("Profile:  "), p.Name)
		if p.RoleArn != "" {
			fmt.Printf("%s %s\n", labelStyle.Render("Role:     "), p.RoleArn)
		}
		if p.Region != "" {
			fmt.Printf("%s %s\n", labelStyle.Render("Region:   "), p.Region)
		}

		if p.Expiration == "" {
			fmt.Printf("%s long-lived credentials (no expiration)\n", labelStyle.Render("Validity: "))
			return nil
		}

		expiry, err := internal.ParseExpiration(p.Expiration)
		if err != nil {
			return err
		}

		remaining := internal.RemainingValidity(expiry, time.Now())
		if remaining <= 0 {
			fmt.Printf("%s %s (expired %s ago)\n",
				labelStyle.Render("Validity: "),
				expiredStyle.Render("EXPIRED"),
				(-remaining).Round(time.Second))
			return nil
		}

		fmt.Printf("%s %s (%s left, until %s)\n",
			labelStyle.Render("Validity: "),
			activeStyle.Render("ACTIVE"),
			remaining.Round(time.Second),
			expiry.Local().Format(internal.DisplayTimeFormat))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
