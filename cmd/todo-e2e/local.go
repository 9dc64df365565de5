package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/todoqa/todo-e2e/internal/config"
	"github.com/todoqa/todo-e2e/internal/fixtureapp"
)

// startLocal serves the fixture app on a free port and points cfg at it.
// The returned func stops the server.
func startLocal(cfg *config.Config, log *logrus.Logger) (func(), error) {
	srv, err := fixtureapp.New(fixtureapp.Options{Logger: log})
	if err != nil {
		return nil, err
	}
	running, err := srv.Start("127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	cfg.BaseURL = running.URL + "/"
	cfg.APIURL = running.APIURL
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = running.Close(ctx)
	}, nil
}
