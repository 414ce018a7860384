package service

import (
	"context"
	"fmt"
	"strings"

	"responseready/logging"
	"responseready/models"
	"responseready/policy"

	"golang.org/x/sync/errgroup"
)

// Search matches individuals by name prefix and vehicles by exact plate or
// owner prefix. The query is used as typed: matching is case-sensitive and
// whitespace is significant, except that the plate path uppercases the query.
// An empty query matches nothing.
func (s *Service) Search(ctx context.Context, caller *models.UserProfile, query string) (*models.SearchResponse, error) {
	if err := policy.Require(caller, policy.ViewRecords); err != nil {
		return nil, err
	}

	resp := &models.SearchResponse{Individuals: []models.Individual{}, Vehicles: []models.Vehicle{}}
	if query == "" {
		return resp, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		people, err := s.store.SearchIndividualsByName(gctx, query)
		if err != nil {
			return err
		}
		resp.Individuals = people
		return nil
	})
	g.Go(func() error {
		vehicles, err := s.searchVehicles(gctx, query)
		if err != nil {
			return err
		}
		resp.Vehicles = vehicles
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return resp, nil
}

// SearchVehicles runs only the vehicle half of Search.
func (s *Service) SearchVehicles(ctx context.Context, caller *models.UserProfile, query string) ([]models.Vehicle, error) {
	if err := policy.Require(caller, policy.ViewRecords); err != nil {
		return nil, err
	}
	if query == "" {
		return []models.Vehicle{}, nil
	}
	return s.searchVehicles(ctx, query)
}

func (s *Service) searchVehicles(ctx context.Context, query string) ([]models.Vehicle, error) {
	var byPlate, byOwner []models.Vehicle

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		byPlate, err = s.store.GetVehiclesByPlate(gctx, strings.ToUpper(query))
		return err
	})
	g.Go(func() (err error) {
		byOwner, err = s.store.SearchVehiclesByOwner(gctx, query)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return mergeVehicles(byPlate, byOwner), nil
}

// mergeVehicles de-duplicates by document id. A later copy replaces an
// earlier one in place, so the result keeps first-seen order.
func mergeVehicles(groups ...[]models.Vehicle) []models.Vehicle {
	index := map[string]int{}
	merged := []models.Vehicle{}
	for _, group := range groups {
		for _, v := range group {
			if i, seen := index[v.ID]; seen {
				merged[i] = v
				continue
			}
			index[v.ID] = len(merged)
			merged = append(merged, v)
		}
	}
	return merged
}

// GetCivilianRecord loads the admin edit view: the individual with this exact
// name and every vehicle whose owner equals it. When names collide the store
// returns one of them.
func (s *Service) GetCivilianRecord(ctx context.Context, caller *models.UserProfile, name string) (*models.CivilianRecord, error) {
	if err := policy.Require(caller, policy.EditRecords); err != nil {
		return nil, err
	}

	individual, err := s.store.GetIndividualByName(ctx, name)
	if err != nil {
		return nil, err
	}
	vehicles, err := s.store.GetVehiclesByOwner(ctx, individual.Name)
	if err != nil {
		return nil, err
	}
	return &models.CivilianRecord{Individual: individual, Vehicles: vehicles}, nil
}

// UpdateCivilianRecord saves the individual and its vehicles together. Every
// entry is validated before anything is written, and the write itself is
// atomic. Vehicle owners are not rewritten when the individual is renamed.
func (s *Service) UpdateCivilianRecord(ctx context.Context, caller *models.UserProfile, record *models.CivilianRecord) error {
	if err := policy.Require(caller, policy.EditRecords); err != nil {
		return err
	}
	if record.Individual == nil {
		return fmt.Errorf("%w: individual is required", models.ErrValidationFailed)
	}
	if err := s.checkIndividual(caller, record.Individual); err != nil {
		return err
	}
	for i := range record.Vehicles {
		if err := s.checkVehicle(caller, &record.Vehicles[i]); err != nil {
			return fmt.Errorf("vehicle %d: %w", i, err)
		}
	}

	if err := s.store.UpdateCivilianRecord(ctx, record.Individual, record.Vehicles); err != nil {
		return err
	}
	logging.Audit(s.log, caller.UID, string(policy.EditRecords),
		fmt.Sprintf("updated civilian record %s with %d vehicles", record.Individual.ID, len(record.Vehicles)))
	return nil
}

// CreateIndividual adds a person record.
func (s *Service) CreateIndividual(ctx context.Context, caller *models.UserProfile, individual *models.Individual) error {
	if err := s.checkIndividual(caller, individual); err != nil {
		return err
	}
	if err := s.store.CreateIndividual(ctx, individual); err != nil {
		return err
	}
	logging.Audit(s.log, caller.UID, string(policy.EditRecords), "created individual "+individual.ID)
	return nil
}

// UpdateIndividual replaces a person record. Missing records fail with
// ErrRecordNotFound.
func (s *Service) UpdateIndividual(ctx context.Context, caller *models.UserProfile, individual *models.Individual) error {
	if err := s.checkIndividual(caller, individual); err != nil {
		return err
	}
	if err := s.store.UpdateIndividual(ctx, individual); err != nil {
		return err
	}
	logging.Audit(s.log, caller.UID, string(policy.EditRecords), "updated individual "+individual.ID)
	return nil
}

func (s *Service) checkIndividual(caller *models.UserProfile, individual *models.Individual) error {
	if err := policy.Require(caller, policy.EditRecords); err != nil {
		return err
	}
	trim(&individual.Name, &individual.DOB, &individual.Address)
	if individual.Guns == nil {
		individual.Guns = []string{}
	}
	return models.Validate(individual)
}

// CreateVehicle adds a vehicle. Plates are stored uppercase so the plate
// search path can match them.
func (s *Service) CreateVehicle(ctx context.Context, caller *models.UserProfile, vehicle *models.Vehicle) error {
	if err := s.checkVehicle(caller, vehicle); err != nil {
		return err
	}
	if err := s.store.CreateVehicle(ctx, vehicle); err != nil {
		return err
	}
	logging.Audit(s.log, caller.UID, string(policy.EditRecords), "created vehicle "+vehicle.ID)
	return nil
}

// UpdateVehicle replaces a vehicle record.
func (s *Service) UpdateVehicle(ctx context.Context, caller *models.UserProfile, vehicle *models.Vehicle) error {
	if err := s.checkVehicle(caller, vehicle); err != nil {
		return err
	}
	if err := s.store.UpdateVehicle(ctx, vehicle); err != nil {
		return err
	}
	logging.Audit(s.log, caller.UID, string(policy.EditRecords), "updated vehicle "+vehicle.ID)
	return nil
}

func (s *Service) checkVehicle(caller *models.UserProfile, vehicle *models.Vehicle) error {
	if err := policy.Require(caller, policy.EditRecords); err != nil {
		return err
	}
	trim(&vehicle.Plate, &vehicle.Model, &vehicle.Owner)
	vehicle.Plate = strings.ToUpper(vehicle.Plate)
	return models.Validate(vehicle)
}
