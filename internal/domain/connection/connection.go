// Package connection holds the state of one user's link to a backend.
package connection

import (
	"context"
	"errors"
	"strings"

	"github.com/interviewcoach/backend/internal/backend"
	"github.com/interviewcoach/backend/internal/id"
)

var (
	ErrNotConnected = errors.New("not connected: connect to a backend first")
	ErrEmptyModel   = errors.New("model cannot be empty")
)

// Verifier performs the live check behind Connect. *backend.Adapter
// implements it.
type Verifier interface {
	Verify(ctx context.Context, credential string, id backend.Identity) (bool, string)
	Models(ctx context.Context, id backend.Identity, credential string) ([]backend.ModelOption, error)
}

// VerifyError is returned when the live check fails. Message is displayable.
type VerifyError struct {
	Backend backend.Identity
	Message string
}

func (e *VerifyError) Error() string {
	return e.Message
}

// Connection is (backend, credential, model, connected). The model is only
// trusted while Connected is true for the current backend.
type Connection struct {
	ID         string
	Backend    backend.Identity
	Credential string
	Model      string
	Connected  bool
	Models     []backend.ModelOption
}

// New creates an empty, disconnected connection.
func New() *Connection {
	return &Connection{ID: id.GenerateID()}
}

// Connect verifies credential against the backend and, on success, selects
// model (or the first real model available). On failure the connection is
// left disconnected with no model.
func (c *Connection) Connect(ctx context.Context, v Verifier, id backend.Identity, credential, model string) (string, error) {
	spec, err := backend.Lookup(id)
	if err != nil {
		return "", err
	}

	c.Backend = id
	c.Credential = strings.TrimSpace(credential)
	c.Connected = false
	c.Model = ""
	c.Models = spec.Models

	ok, msg := v.Verify(ctx, c.Credential, id)
	if !ok {
		return msg, &VerifyError{Backend: id, Message: msg}
	}

	if models, err := v.Models(ctx, id, c.Credential); err == nil && len(models) > 0 {
		c.Models = models
	}
	c.Model = pickModel(strings.TrimSpace(model), c.Models, spec)
	c.Connected = true
	return msg, nil
}

func pickModel(requested string, models []backend.ModelOption, spec backend.Spec) string {
	if requested != "" {
		return requested
	}
	for _, m := range models {
		if !m.Placeholder {
			return m.ID
		}
	}
	return spec.DefaultModel()
}

// SwitchBackend changes the backend identity. Any change disconnects and
// clears the credential and model so nothing from the previous backend is
// reused.
func (c *Connection) SwitchBackend(id backend.Identity) error {
	spec, err := backend.Lookup(id)
	if err != nil {
		return err
	}
	if id == c.Backend {
		return nil
	}
	c.Backend = id
	c.Credential = ""
	c.Model = ""
	c.Connected = false
	c.Models = spec.Models
	return nil
}

// SelectModel changes the model on a live connection.
func (c *Connection) SelectModel(model string) error {
	if !c.Connected {
		return ErrNotConnected
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return ErrEmptyModel
	}
	c.Model = model
	return nil
}

// Ready returns ErrNotConnected unless the model may be used.
func (c *Connection) Ready() error {
	if !c.Connected || c.Model == "" {
		return ErrNotConnected
	}
	return nil
}
