package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	invo "github.com/invohq/invo-go"
	"github.com/invohq/invo-go/internal/config"
	"github.com/invohq/invo-go/session"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %s\n", err)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	// .env is optional; real deployments export the variables directly.
	_ = godotenv.Load()

	env := config.EnvVars{}
	displayAppname(env.GetAppName())

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	client, err := buildClient(env, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := client.CreateInvoice(ctx, sampleInvoice())
	if err != nil {
		return fmt.Errorf("creating invoice: %w", err)
	}
	logger.Info().
		Str("invoice_id", result.InvoiceID).
		Int("chain_index", result.ChainIndex).
		Msg("invoice stored")

	client.Logout()
	return nil
}

func buildClient(env config.EnvVars, logger zerolog.Logger) (*invo.Client, error) {
	options := []invo.Option{
		invo.WithLogger(logger),
		invo.WithHooks(session.Hooks{
			OnTokenRefreshed: func(session.Credentials) {
				logger.Info().Msg("token refreshed")
			},
			OnError: func(err error) {
				logger.Warn().Err(err).Msg("sdk error")
			},
		}),
	}

	switch {
	case env.GetAPIKey() != "":
		options = append(options, invo.WithAPIKey(env.GetAPIKey()))
		if ws := env.GetWorkspace(); ws != "" {
			options = append(options, invo.WithWorkspace(ws))
		}
	case env.GetEmail() != "":
		options = append(options,
			invo.WithPassword(env.GetEmail(), env.GetPassword()),
			invo.WithAutoRefresh(true),
		)
	default:
		return nil, errors.New("set INVO_API_KEY or INVO_EMAIL/INVO_PASSWORD")
	}

	if literal := env.GetEnvironment(); literal != "" {
		options = append(options, invo.WithEnvironment(invo.Environment(literal)))
	}
	return invo.New(options...)
}

func sampleInvoice() invo.Invoice {
	return invo.Invoice{
		InvoiceNumber: "FAC-2024-001",
		IssuedAt:      time.Now().Format("2006-01-02"),
		Customer:      &invo.Party{Name: "ACME SL", TaxID: "B12345678"},
		TotalAmount:   1210.00,
		TaxLines: []invo.TaxLine{
			{TaxRate: 21, BaseAmount: 1000.00, TaxAmount: 210.00},
		},
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
