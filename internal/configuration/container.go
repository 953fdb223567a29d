package configuration

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/ifion/MedSystem-sub000/internal/db"
	"github.com/ifion/MedSystem-sub000/internal/handler"
	"github.com/ifion/MedSystem-sub000/internal/hub"
	"github.com/ifion/MedSystem-sub000/internal/model"
	"github.com/ifion/MedSystem-sub000/internal/repo"
	"github.com/ifion/MedSystem-sub000/internal/service"
)

type Container struct {
	MessageHandler     handler.MessageHandler
	AppointmentHandler handler.AppointmentHandler
	Hub                *hub.Hub
	Config             Config
	Logger             *zap.Logger

	// private - for cleanup
	mongoClient *mongo.Database
}

func BuildContainer() (*Container, error) {
	configPath := os.Getenv("MEDSYSTEM_CONFIG")
	if configPath == "" {
		configPath = "config.json"
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	con, err := db.OpenConnection(config.Mongo.Uri, config.Mongo.Database)
	if err != nil {
		return nil, err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}

	messageRepo := repo.NewMessageRepository(db.NewRepository[model.Message](con, config.Mongo.MessagesCollection), logger)
	userRepo := repo.NewUserRepository(db.NewRepository[model.User](con, config.Mongo.UsersCollection), logger)
	groupRepo := repo.NewGroupRepository(db.NewRepository[model.Group](con, config.Mongo.GroupsCollection))
	appointmentRepo := repo.NewAppointmentRepository(db.NewRepository[model.Appointment](con, config.Mongo.AppointmentsCollection))

	// Presence sweep: nothing may stay "online" from a crashed run.
	if _, err := userRepo.MarkAllOffline(context.Background()); err != nil {
		logger.Error("startup presence sweep failed", zap.Error(err))
	}

	messageService := service.NewMessageService(messageRepo, userRepo, logger)

	socketHub := hub.NewHub(messageService, userRepo, groupRepo, logger)
	messageService.SetNotifier(socketHub)

	return &Container{
		MessageHandler:     handler.NewMessageHandler(messageService),
		AppointmentHandler: handler.NewAppointmentHandler(appointmentRepo),
		Hub:                socketHub,
		Config:             *config,
		Logger:             logger,
		mongoClient:        con,
	}, nil
}

// Close gracefully shuts down all connections
func (c *Container) Close() error {
	// Stop the hub first (closes all WebSocket connections)
	if c.Hub != nil {
		c.Hub.Stop()
	}

	if c.Logger != nil {
		_ = c.Logger.Sync()
	}

	// Close MongoDB connection pool
	if c.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.mongoClient.Client().Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to close MongoDB connection: %w", err)
		}
	}

	return nil
}
