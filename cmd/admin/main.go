// Command admin runs operator tasks against the ledger database.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/roryk/backend/internal/audit"
	"github.com/roryk/backend/internal/config"
	"github.com/roryk/backend/internal/database"
	"github.com/roryk/backend/internal/logger"
	"github.com/roryk/backend/internal/models"
	"github.com/roryk/backend/internal/repository/postgres"
	"github.com/roryk/backend/internal/services"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const usage = `usage: admin <command> [flags]

commands:
  migrate up|down                      apply or roll back schema migrations
  create-superadmin -username -password [-email]
  statement -user <id>                 print an account ledger as CSV
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()
	config.BindEnv()
	_ = viper.ReadInConfig()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}
	log := logger.NewForEnvironment(cfg.Server.Env, cfg.Server.LogLevel)
	defer log.Sync()

	if err := run(context.Background(), cfg, log, os.Args[1], os.Args[2:]); err != nil {
		log.Error("command failed", zap.String("command", os.Args[1]), zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger, command string, args []string) error {
	db, err := database.InitDB(database.GetConfig(), log)
	if err != nil {
		return err
	}
	defer db.Close()

	store := postgres.New(db)
	auditLogger := audit.NewLogger(log)

	switch command {
	case "migrate":
		migrator, err := database.NewMigrator(db, log)
		if err != nil {
			return err
		}
		if len(args) > 0 && args[0] == "down" {
			return migrator.Down()
		}
		return migrator.Up()

	case "create-superadmin":
		fs := flag.NewFlagSet(command, flag.ContinueOnError)
		username := fs.String("username", cfg.Bootstrap.Username, "account username")
		password := fs.String("password", "", "account password")
		email := fs.String("email", "", "account email")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *password == "" {
			return fmt.Errorf("-password is required")
		}

		hasher := services.NewPasswordHasher(cfg.Argon2)
		accounts := services.NewAccountService(store.Accounts(), hasher, cfg.Password.MinLength, auditLogger, log)
		account, err := accounts.CreateSuperadmin(ctx, services.RegisterInput{
			Username: *username,
			Password: *password,
			Email:    *email,
		})
		if err != nil {
			return err
		}
		fmt.Println(account.ID)
		return nil

	case "statement":
		fs := flag.NewFlagSet(command, flag.ContinueOnError)
		userID := fs.String("user", "", "account id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *userID == "" {
			return fmt.Errorf("-user is required")
		}

		ledger := services.NewLedgerService(store, auditLogger, nil, log)
		txs, err := ledger.ListTransactions(ctx, *userID)
		if err != nil {
			return err
		}
		return writeStatement(os.Stdout, txs)

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

var statementHeader = []string{
	"created_at", "id", "type", "amount", "previous_balance", "new_balance",
	"service_type", "vehicle", "performed_by", "description",
}

// writeStatement renders ledger records as CSV in the order given.
func writeStatement(w io.Writer, txs []*models.Transaction) error {
	out := csv.NewWriter(w)
	if err := out.Write(statementHeader); err != nil {
		return err
	}
	for _, tx := range txs {
		var service, vehicle string
		if tx.ServiceType != nil {
			service = string(*tx.ServiceType)
		}
		if tx.VehicleIdentifier != nil {
			vehicle = *tx.VehicleIdentifier
		}
		row := []string{
			tx.CreatedAt.UTC().Format(time.RFC3339),
			tx.ID,
			string(tx.Type),
			tx.Amount.String(),
			tx.PreviousBalance.String(),
			tx.NewBalance.String(),
			service,
			vehicle,
			tx.PerformedBy,
			tx.Description,
		}
		if err := out.Write(row); err != nil {
			return err
		}
	}
	out.Flush()
	return out.Error()
}
