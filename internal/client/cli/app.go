package cli

import (
	"bufio"
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/carevault/carevault/internal/client/client"
	"github.com/carevault/carevault/internal/client/config"
	"github.com/carevault/carevault/internal/client/services"
	"github.com/carevault/carevault/internal/client/session"
	"github.com/carevault/carevault/internal/common"
	"github.com/carevault/carevault/internal/logging"
)

// authService is the slice of services.AuthService the commands use;
// tests substitute a stub.
type authService interface {
	Register(ctx context.Context, username string, password []byte, displayName string) error
	Login(ctx context.Context, username string, password []byte, tier common.Tier) error
	OfflineLogin(ctx context.Context, username string, password []byte) error
	ResumeSession(ctx context.Context) error
	ChangePassword(ctx context.Context, oldPassword, newPassword []byte) error
	Logout(ctx context.Context) error
	Close() error
}

// recordService mirrors services.RecordService for the same reason.
type recordService interface {
	Save(ctx context.Context, period, subkey string, plaintext []byte) error
	Get(ctx context.Context, period, subkey string) (*services.Entry, error)
	List(ctx context.Context) ([]services.Entry, error)
	Delete(ctx context.Context, period, subkey string) error
}

// App owns the client's wiring: the API client, the local database, the
// session context, and the services the REPL commands call.
type App struct {
	config        *config.Config
	api           client.Client
	session       *session.Context
	authService   authService
	recordService recordService
	decryptor     *services.DecryptionService
	userName      string
	reader        *bufio.Reader
}

func NewApp(c *config.Config) (*App, error) {
	ctx := context.Background()

	db, err := client.InitDatabase(ctx, c.DatabaseDSN)
	if err != nil {
		log.Printf("error initializing database: %s", err.Error())
		return nil, err
	}

	apiClient := client.NewHTTPClient(c.ServerEndpointAddr)
	sc := session.NewContext(apiClient)
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	return &App{
		config:        c,
		api:           apiClient,
		session:       sc,
		authService:   services.NewAuthService(apiClient, db, sc),
		recordService: services.NewRecordService(apiClient, db, sc),
		decryptor:     services.NewDecryptionService(logger),
		reader:        bufio.NewReader(os.Stdin),
	}, nil
}

func (a *App) isLoggedIn() bool {
	return a.session.State() == session.StateActive
}

// Run resumes a persisted convenience session if one exists and starts the
// REPL. It blocks until the user exits.
func (a *App) Run(ctx context.Context) {
	defer a.authService.Close()

	if err := a.authService.ResumeSession(ctx); err == nil {
		printlnFn("Resumed previous session")
	}

	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.status, scanner)
}

func (a *App) status() string {
	if !a.isLoggedIn() {
		return ""
	}
	return a.userName + " (" + string(a.session.Tier()) + ")"
}
