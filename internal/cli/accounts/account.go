package accounts

import (
	"context"
	"fmt"

	"github.com/julianstephens/qada/internal/cli"
	"github.com/julianstephens/qada/internal/validation"
)

type AccountCmd struct {
	Create AccountCreateCmd `cmd:"" help:"Create an account."`
	Use    AccountUseCmd    `cmd:"" help:"Switch the active account, creating it if needed."`
	List   AccountListCmd   `cmd:"" help:"List accounts." default:"1"`
}

type AccountCreateCmd struct {
	Name string `arg:"" help:"Account name (no whitespace)."`
	Use  bool   `help:"Also make it the active account."`
}

func (c *AccountCreateCmd) Run(ctx *cli.Context) error {
	if err := validation.AccountID(c.Name); err != nil {
		return err
	}
	bg := context.Background()
	if err := ctx.Store.EnsureAccount(bg, c.Name); err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	fmt.Printf("✓ Account %s created\n", c.Name)

	if c.Use {
		if err := ctx.Store.SetActiveAccount(bg, c.Name); err != nil {
			return fmt.Errorf("failed to set active account: %w", err)
		}
		fmt.Printf("  Now using %s\n", c.Name)
	}
	return nil
}

type AccountUseCmd struct {
	Name string `arg:"" help:"Account name."`
}

func (c *AccountUseCmd) Run(ctx *cli.Context) error {
	if err := validation.AccountID(c.Name); err != nil {
		return err
	}
	bg := context.Background()
	if err := ctx.Store.EnsureAccount(bg, c.Name); err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	if err := ctx.Store.SetActiveAccount(bg, c.Name); err != nil {
		return fmt.Errorf("failed to set active account: %w", err)
	}
	fmt.Printf("✓ Now using account %s\n", c.Name)
	return nil
}

type AccountListCmd struct{}

func (c *AccountListCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	accounts, err := ctx.Store.ListAccounts(bg)
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		fmt.Println("No accounts yet. Create one with 'qada account use <name>'.")
		return nil
	}

	active, err := ctx.Store.GetActiveAccount(bg)
	if err != nil {
		return fmt.Errorf("failed to get active account: %w", err)
	}
	for _, a := range accounts {
		marker := " "
		if a == active {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, a)
	}
	return nil
}
