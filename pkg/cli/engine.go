package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"circle-core/internal/config"
	internaldb "circle-core/internal/db"
	"circle-core/internal/db/repository"
	"circle-core/internal/domain"
	"circle-core/internal/scopes"
	"circle-core/internal/service/access"
)

// engine bundles the services a command needs, plus the connection to close
// when the command is done.
type engine struct {
	circles     *access.CircleService
	roles       *access.RoleService
	members     *access.MembershipService
	delegations *access.DelegationService
	authz       *access.AuthorizationService
	audits      domain.AuditRepository
	catalog     *scopes.Catalog

	close func() error
}

// openEngine opens the database named by the root --db flag, applies pending
// migrations, loads the scope catalog (the embedded default, or the file
// named by --catalog), and wires the service layer.
func openEngine(cmd *cobra.Command) (*engine, error) {
	flags := cmd.Root().PersistentFlags()
	dbPath, _ := flags.GetString("db")
	catalogPath, _ := flags.GetString("catalog")

	catalog := scopes.Default()
	if catalogPath != "" {
		data, err := os.ReadFile(catalogPath) //nolint:gosec // path is caller-controlled
		if err != nil {
			return nil, fmt.Errorf("read scope catalog: %w", err)
		}
		catalog, err = scopes.Load(data)
		if err != nil {
			return nil, fmt.Errorf("load scope catalog: %w", err)
		}
	}

	db, err := internaldb.OpenSQLite(dbPath, internaldb.ModeWrite, 0)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := internaldb.RunMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	circleRepo := repository.NewCircleRepo(db)
	roleRepo := repository.NewRoleRepo(db)
	membershipRepo := repository.NewMembershipRepo(db)
	delegationRepo := repository.NewDelegationRepo(db)
	auditRepo := repository.NewAuditRepo(db)

	cfg, err := config.LoadFromEnv()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	var logOut io.Writer = os.Stderr
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler = slog.NewTextHandler(logOut, opts)
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(logOut, opts)
	}
	logger := slog.New(handler)
	for _, w := range cfg.Warnings {
		logger.Debug("config", "warning", w)
	}

	authz := access.NewAuthorizationService(membershipRepo, roleRepo, delegationRepo, catalog)

	return &engine{
		circles:     access.NewCircleService(circleRepo, auditRepo, catalog, authz, logger),
		roles:       access.NewRoleService(roleRepo, circleRepo, auditRepo, catalog, authz, logger),
		members:     access.NewMembershipService(membershipRepo, roleRepo, circleRepo, auditRepo, authz, logger),
		delegations: access.NewDelegationService(delegationRepo, membershipRepo, roleRepo, circleRepo, auditRepo, catalog, authz, logger),
		authz:       authz,
		audits:      auditRepo,
		catalog:     catalog,
		close:       db.Close,
	}, nil
}

// actingPrincipal parses the root --as flag, required for every mutating
// command.
func actingPrincipal(cmd *cobra.Command) (domain.Principal, error) {
	key, _ := cmd.Root().PersistentFlags().GetString("as")
	if key == "" {
		return domain.Principal{}, fmt.Errorf("--as is required: pass the acting principal, e.g. --as individual:alice")
	}
	return domain.ParsePrincipal(key)
}
