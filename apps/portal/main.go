package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/client"
	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/session"
	logsvc "github.com/trezcool/masomo-portal/services/logger"
)

func main() {
	conf, err := core.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	// the terminal belongs to the UI: logs go to the rotating log file
	logger := logsvc.NewRollbarLogger(logsvc.NewStd(conf), conf)

	api := client.NewFromConfig(conf, client.WithLogger(logger))
	sess := session.New(api.Authenticator(), session.NewFileStore(conf.Session.File), session.WithLogger(logger))
	if err := sess.Restore(); err != nil && errors.Cause(err) != session.ErrSessionExpired {
		logger.Warn("restoring session", err)
	}

	cli := newCommandLine(conf, logger, sess, api.WithSession(sess), os.Stdout)
	err = cli.run(os.Args)
	logger.Close()
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
