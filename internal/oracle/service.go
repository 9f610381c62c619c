// Package oracle is a development stand-in for the authentication backend.
// It answers the station's GET contract from a static policy.
package oracle

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidToken     = errors.New("token rejected")
	ErrInvalidGroup     = errors.New("machine group is required")
	ErrInvalidMachineID = errors.New("machine id is required")
	ErrInvalidCardID    = errors.New("card id is required")
	ErrUnknownMachine   = errors.New("machine is not registered")
)

type Policy struct {
	Token          string
	AllowAll       bool
	AllowedCardIDs map[string]struct{}
}

type AccessRequest struct {
	Token     string
	Group     string
	MachineID string
	CardID    string
}

type Decision struct {
	Granted bool
	Reason  string
}

type Service struct {
	registry *Registry
	policy   Policy
	now      func() time.Time
}

func NewService(reg *Registry, policy Policy) *Service {
	return &Service{registry: reg, policy: policy, now: time.Now}
}

func (s *Service) checkToken(token string) error {
	if s.policy.Token != "" && strings.TrimSpace(token) != s.policy.Token {
		return ErrInvalidToken
	}
	return nil
}

// Decide answers one access request.
func (s *Service) Decide(req AccessRequest) (Decision, error) {
	if err := s.checkToken(req.Token); err != nil {
		return Decision{}, err
	}

	group := strings.TrimSpace(req.Group)
	machineID := strings.TrimSpace(req.MachineID)
	cardID := strings.ToUpper(strings.TrimSpace(req.CardID))

	if group == "" {
		return Decision{}, ErrInvalidGroup
	}
	if machineID == "" {
		return Decision{}, ErrInvalidMachineID
	}
	if cardID == "" || cardID == "0" {
		return Decision{}, ErrInvalidCardID
	}

	known := s.registry.IsKnown(machineID)
	s.registry.NoteSeen(machineID, s.now().UTC())
	if !known {
		return Decision{Reason: "unknown_machine"}, ErrUnknownMachine
	}

	if s.policy.AllowAll {
		return Decision{Granted: true, Reason: "allow_all"}, nil
	}
	if _, ok := s.policy.AllowedCardIDs[cardID]; ok {
		return Decision{Granted: true, Reason: "card_allowed"}, nil
	}
	return Decision{Reason: "card_not_allowed"}, nil
}

// Extend records a session keep-alive for a machine group.
func (s *Service) Extend(token, group string) error {
	if err := s.checkToken(token); err != nil {
		return err
	}
	group = strings.TrimSpace(group)
	if group == "" {
		return ErrInvalidGroup
	}
	s.registry.NoteExtended(group, s.now().UTC())
	return nil
}
