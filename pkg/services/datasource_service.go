package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sentra-security/sentra-engine/pkg/crypto"
	"github.com/sentra-security/sentra-engine/pkg/jsonutil"
	"github.com/sentra-security/sentra-engine/pkg/models"
	"github.com/sentra-security/sentra-engine/pkg/repositories"
)

// DatasourceService defines the interface for datasource operations.
type DatasourceService interface {
	// Create creates a new datasource with encrypted config.
	Create(ctx context.Context, projectID uuid.UUID, name, dsType string, config map[string]any) (*models.Datasource, error)

	// Get retrieves a datasource by ID within a project with decrypted config.
	Get(ctx context.Context, projectID, id uuid.UUID) (*models.Datasource, error)

	// List retrieves all datasources for a project with decrypted configs.
	List(ctx context.Context, projectID uuid.UUID) ([]*models.Datasource, error)

	// Update modifies a datasource with encrypted config.
	Update(ctx context.Context, projectID, id uuid.UUID, name, dsType string, config map[string]any) error

	// Delete removes a datasource and the findings recorded against it.
	Delete(ctx context.Context, projectID, id uuid.UUID) error
}

// datasourceService implements DatasourceService.
type datasourceService struct {
	repo        repositories.DatasourceRepository
	findingRepo repositories.FindingRepository
	encryptor   *crypto.CredentialEncryptor
	logger      *zap.Logger
}

// NewDatasourceService creates a new datasource service with dependencies.
func NewDatasourceService(
	repo repositories.DatasourceRepository,
	findingRepo repositories.FindingRepository,
	encryptor *crypto.CredentialEncryptor,
	logger *zap.Logger,
) DatasourceService {
	return &datasourceService{
		repo:        repo,
		findingRepo: findingRepo,
		encryptor:   encryptor,
		logger:      logger,
	}
}

// Create creates a new datasource with encrypted config.
func (s *datasourceService) Create(ctx context.Context, projectID uuid.UUID, name, dsType string, config map[string]any) (*models.Datasource, error) {
	// Validate inputs
	if name == "" {
		return nil, fmt.Errorf("datasource name is required")
	}
	if dsType == "" {
		return nil, fmt.Errorf("datasource type is required")
	}
	if config == nil {
		config = make(map[string]any)
	}

	// Encrypt config
	encryptedConfig, err := s.encryptConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt config: %w", err)
	}

	ds := &models.Datasource{
		ProjectID:      projectID,
		Name:           name,
		DatasourceType: dsType,
		Config:         config,
	}

	if err := s.repo.Create(ctx, ds, encryptedConfig); err != nil {
		return nil, err
	}

	s.logger.Info("Created datasource",
		zap.String("id", ds.ID.String()),
		zap.String("project_id", projectID.String()),
		zap.String("name", name),
		zap.String("endpoint", connectionSummary(config)))

	return ds, nil
}

// Get retrieves a datasource by ID within a project with decrypted config.
func (s *datasourceService) Get(ctx context.Context, projectID, id uuid.UUID) (*models.Datasource, error) {
	ds, encryptedConfig, err := s.repo.GetByID(ctx, projectID, id)
	if err != nil {
		return nil, err
	}

	config, err := s.decryptConfig(encryptedConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt config: %w", err)
	}
	ds.Config = config

	return ds, nil
}

// List retrieves all datasources for a project with decrypted configs.
func (s *datasourceService) List(ctx context.Context, projectID uuid.UUID) ([]*models.Datasource, error) {
	datasources, encryptedConfigs, err := s.repo.List(ctx, projectID)
	if err != nil {
		return nil, err
	}

	for i, ds := range datasources {
		config, err := s.decryptConfig(encryptedConfigs[i])
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt config for %s: %w", ds.Name, err)
		}
		ds.Config = config
	}

	return datasources, nil
}

// Update modifies a datasource with encrypted config.
func (s *datasourceService) Update(ctx context.Context, projectID, id uuid.UUID, name, dsType string, config map[string]any) error {
	if name == "" {
		return fmt.Errorf("datasource name is required")
	}
	if dsType == "" {
		return fmt.Errorf("datasource type is required")
	}
	if config == nil {
		config = make(map[string]any)
	}

	encryptedConfig, err := s.encryptConfig(config)
	if err != nil {
		return fmt.Errorf("failed to encrypt config: %w", err)
	}

	if err := s.repo.Update(ctx, projectID, id, name, dsType, encryptedConfig); err != nil {
		return err
	}

	s.logger.Info("Updated datasource",
		zap.String("id", id.String()),
		zap.String("project_id", projectID.String()),
		zap.String("name", name),
		zap.String("endpoint", connectionSummary(config)))

	return nil
}

// Delete removes a datasource and the findings recorded against it.
func (s *datasourceService) Delete(ctx context.Context, projectID, id uuid.UUID) error {
	ds, _, err := s.repo.GetByID(ctx, projectID, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, projectID, id); err != nil {
		return err
	}

	// Findings from a disconnected store are no longer actionable
	deleted, err := s.findingRepo.DeleteByDataStore(ctx, projectID, ds.Name)
	if err != nil {
		return fmt.Errorf("failed to delete findings for datasource: %w", err)
	}

	s.logger.Info("Deleted datasource",
		zap.String("id", id.String()),
		zap.String("project_id", projectID.String()),
		zap.Int64("findings_removed", deleted))

	return nil
}

// encryptConfig serializes and encrypts config for storage.
func (s *datasourceService) encryptConfig(config map[string]any) (string, error) {
	jsonBytes, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return s.encryptor.Encrypt(string(jsonBytes))
}

// connectionSummary builds a credential-free host:port description for log
// lines. Clients send port as either a JSON number or a string.
func connectionSummary(config map[string]any) string {
	host := jsonutil.StringValue(config["host"])
	if host == "" {
		host = jsonutil.StringValue(config["bucket"])
	}
	if host == "" {
		return ""
	}
	if port := jsonutil.StringValue(config["port"]); port != "" {
		return host + ":" + port
	}
	return host
}

// decryptConfig decrypts and deserializes config from encrypted string.
func (s *datasourceService) decryptConfig(encrypted string) (map[string]any, error) {
	decrypted, err := s.encryptor.Decrypt(encrypted)
	if err != nil {
		return nil, err
	}
	if decrypted == "" {
		return map[string]any{}, nil
	}
	var config map[string]any
	if err := json.Unmarshal([]byte(decrypted), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return config, nil
}

// Ensure datasourceService implements DatasourceService at compile time.
var _ DatasourceService = (*datasourceService)(nil)
