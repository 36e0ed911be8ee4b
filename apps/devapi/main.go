package main

import (
	"context"
	"fmt"
	"os"
	"time"

	echoapi "github.com/trezcool/masomo-portal/apps/devapi/echo"
	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/content"
	"github.com/trezcool/masomo-portal/core/project"
	"github.com/trezcool/masomo-portal/core/user"
	logsvc "github.com/trezcool/masomo-portal/services/logger"
	inmemdb "github.com/trezcool/masomo-portal/storage/inmem"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// =========================================================================
	// Set up Dependencies

	conf, err := core.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	logger := logsvc.NewRollbarLogger(logsvc.NewStdWriter(os.Stderr, conf), conf)
	defer logger.Close()

	db := inmemdb.Open()
	usrSvc := user.NewService(inmemdb.NewUserRepository(db))
	prjSvc := project.NewService(inmemdb.NewProjectRepository(db))
	cntSvc := content.NewService(inmemdb.NewContentRepository(db))

	if err = seedAdmin(conf, usrSvc); err != nil {
		logger.Fatal(fmt.Sprintf("seeding admin: %v", err), err)
	}

	// =========================================================================
	// Start API Service

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	server := echoapi.NewServer(&echoapi.Deps{
		Conf:       conf,
		Logger:     logger,
		UserSvc:    usrSvc,
		ProjectSvc: prjSvc,
		ContentSvc: cntSvc,
	})

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// seedAdmin creates the configured admin: the store starts empty on every run.
func seedAdmin(conf *core.Config, svc *user.Service) error {
	if conf.Server.AdminPassword == "" {
		return nil
	}
	nu := user.NewUser{
		Name:            "Administrator",
		Username:        conf.Server.AdminUsername,
		Password:        conf.Server.AdminPassword,
		PasswordConfirm: conf.Server.AdminPassword,
		Roles:           []string{user.RoleAdmin},
	}
	if err := nu.Validate(); err != nil {
		return err
	}
	_, err := svc.Create(nu)
	return err
}
