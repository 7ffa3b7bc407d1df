package main

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/config"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/credential"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/handler"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/resolver"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/trial"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/pkg/http/client"
)

var (
	lambdaStart  = lambda.Start // Allow mocking of lambda.Start in tests
	stopsHandler *handler.StopsHandler
	setupOnce    sync.Once
)

func init() {
	setupOnce.Do(func() {
		cfg, err := config.LoadFromEnv()
		if err != nil {
			cfg = config.New()
			cfg.InitializeLogging()
			log.Error().Err(err).Msg("Invalid environment, using defaults")
		} else {
			cfg.InitializeLogging()
		}

		log.Info().Str("env", cfg.Environment).Msg("Environment")

		trials := resolver.DefaultTrials()
		if cfg.TrialCatalog != "" {
			loaded, err := config.LoadTrialCatalog(cfg.TrialCatalog)
			if err != nil {
				log.Error().Err(err).Str("path", cfg.TrialCatalog).Msg("Error loading trial catalog, using defaults")
			} else {
				trials = loaded
			}
		}

		httpClient := client.New(client.Options{
			Timeout:   cfg.HTTPTimeout,
			UserAgent: cfg.UserAgent,
		})
		stopResolver := resolver.New(trial.NewExecutor(httpClient, cfg.UserAgent), resolver.Options{
			Budget:       cfg.Budget,
			TrialTimeout: cfg.HTTPTimeout,
			MinInterval:  cfg.MinInterval,
			RequestorRef: cfg.RequestorRef,
		})

		stopsHandler = handler.NewStopsHandler(stopResolver, credentialSource(context.Background(), cfg), trials, cfg.Language, cfg.MaxResults)
	})
}

// credentialSource prefers the environment, then the configured S3 object,
// then the configured DynamoDB item.
func credentialSource(ctx context.Context, cfg *config.Config) credential.Source {
	chain := credential.Chain{credential.EnvSource{}}

	if cfg.CredentialS3URI != "" {
		bucket, key, err := credential.ParseS3URI(cfg.CredentialS3URI)
		if err != nil {
			log.Error().Err(err).Msg("Ignoring credential S3 location")
		} else if s3Client, err := credential.NewS3Client(ctx); err != nil {
			log.Error().Err(err).Msg("Error creating S3 client")
		} else {
			chain = append(chain, credential.S3Source{Client: s3Client, Bucket: bucket, Key: key})
		}
	}

	if cfg.CredentialTable != "" {
		dynamoClient, err := credential.NewDynamoClient(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Error creating DynamoDB client")
		} else {
			chain = append(chain, credential.DynamoSource{Client: dynamoClient, TableName: cfg.CredentialTable, ID: cfg.CredentialID})
		}
	}

	return chain
}

func handleRequest(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return stopsHandler.HandleRequest(ctx, request)
}

func main() {
	lambdaStart(handleRequest)
}
