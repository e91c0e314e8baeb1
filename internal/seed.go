package internal

import (
	"bizlink/domain"
	"bizlink/repositories"
	"context"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// Seed is a directory fixture: the users and businesses the messaging
// core reads but never writes.
type Seed struct {
	Users      []SeedUser     `yaml:"users"`
	Businesses []SeedBusiness `yaml:"businesses"`
}

type SeedUser struct {
	ID        string `yaml:"id"`
	Email     string `yaml:"email"`
	FirstName string `yaml:"firstName"`
	LastName  string `yaml:"lastName"`
	Role      string `yaml:"role"`
}

type SeedBusiness struct {
	ID      string `yaml:"id"`
	OwnerID string `yaml:"ownerId"`
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
}

func LoadSeed(r io.Reader) (Seed, error) {
	var seed Seed
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&seed); err != nil {
		return Seed{}, fmt.Errorf("decode seed: %w", err)
	}
	return seed, nil
}

// Apply writes users first so every business finds its owner.
func (s Seed) Apply(ctx context.Context, directory repositories.DirectoryRepository, now time.Time) error {
	for _, u := range s.Users {
		err := directory.PutUser(ctx, domain.User{
			ID:        u.ID,
			Email:     u.Email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Role:      domain.Role(u.Role),
			CreatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("user %q: %w", u.ID, err)
		}
	}
	for _, b := range s.Businesses {
		err := directory.PutBusiness(ctx, domain.Business{ID: b.ID, OwnerID: b.OwnerID, Name: b.Name, Type: b.Type})
		if err != nil {
			return fmt.Errorf("business %q: %w", b.ID, err)
		}
	}
	return nil
}
