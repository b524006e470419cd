// Package setup provides the interactive terminal wizard that generates a
// yaml configuration file.
package setup

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"dcapilot/config"
)

// GeneratedConfigFile is where the wizard stores its result.
const GeneratedConfigFile = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// RunTUI launches the terminal configuration wizard.
func RunTUI() error {
	var (
		platform        string
		symbol          string
		baseAmountStr   string
		maxOrdersStr    string
		tickIntervalStr string
		flattenOnClose  bool
		confirm         bool
	)

	// defaults
	baseAmountStr = "100"
	maxOrdersStr = "10"
	tickIntervalStr = "5m"

	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("DCAPILOT CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Set up your DCA bot step by step.\n"))

	fmt.Println(stepStyle.Render("STEP 1: PLATFORM"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select Exchange Platform").
				Description("DCA campaigns need candle history and balances, Binance only").
				Options(
					huh.NewOption("Binance", "binance"),
					huh.NewOption("Bybit (trailing stops only)", "bybit"),
				).
				Value(&platform),
		),
	).Run()
	if err != nil {
		return err
	}

	if platform == "binance" {
		fmt.Print("\033[H\033[2J")
		fmt.Println(headerStyle.Render("DCAPILOT CONFIG WIZARD"))
		fmt.Println(stepStyle.Render("STEP 2: CAMPAIGN"))
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Trading Symbol").
					Description("Exchange symbol without separator (e.g. BTCUSDT)").
					Value(&symbol).
					Validate(func(s string) error {
						if s == "" {
							return fmt.Errorf("symbol cannot be empty")
						}
						return nil
					}),
				huh.NewInput().
					Title("Base Order Amount").
					Description("Quote amount of the first order, each next grows 1.5x").
					Value(&baseAmountStr).
					Validate(validateAmount),
				huh.NewInput().
					Title("Max Orders").
					Description("Number of orders before the campaign completes (e.g. 10)").
					Value(&maxOrdersStr).
					Validate(validateMaxOrders),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("DCAPILOT CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: TIMING"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Evaluation Interval").
				Description("Duration string (e.g. 30s, 1m, 5m)").
				Value(&tickIntervalStr).
				Validate(func(s string) error {
					_, err := time.ParseDuration(s)
					return err
				}),
			huh.NewConfirm().
				Title("Flatten positions when a trailing stop triggers?").
				Value(&flattenOnClose),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("DCAPILOT CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Platform: %s\nSymbol: %s\nBase amount: %s\nMax orders: %s\nInterval: %s\n",
		platform, symbol, baseAmountStr, maxOrdersStr, tickIntervalStr,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	tickInterval, _ := time.ParseDuration(tickIntervalStr)

	cfg := &config.Config{
		Platform:       platform,
		TickInterval:   tickInterval,
		FlattenOnClose: flattenOnClose,
	}
	if platform == "binance" {
		baseAmount, _ := decimal.NewFromString(baseAmountStr)
		maxOrders, _ := strconv.Atoi(maxOrdersStr)
		cfg.Campaigns = []config.CampaignConfig{
			{
				ID:         fmt.Sprintf("dca-%s", symbol),
				Symbol:     symbol,
				BaseAmount: baseAmount,
				MaxOrders:  maxOrders,
			},
		}
	}

	if err := config.Save(cfg, GeneratedConfigFile); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(
		fmt.Sprintf("\n✓ Configuration saved to %s\nStarting bot...", GeneratedConfigFile)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}

func validateAmount(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func validateMaxOrders(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("must be an integer")
	}
	if n < 1 {
		return fmt.Errorf("must be at least 1")
	}
	return nil
}
