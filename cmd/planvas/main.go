package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/CeeFeS/TinyPlanvas/internal/adapter/realtime"
	"github.com/CeeFeS/TinyPlanvas/internal/adapter/repository"
	"github.com/CeeFeS/TinyPlanvas/internal/config"
	domainRepo "github.com/CeeFeS/TinyPlanvas/internal/domain/repository"
	"github.com/CeeFeS/TinyPlanvas/internal/usecase"
	pkgErrors "github.com/CeeFeS/TinyPlanvas/pkg/errors"
	"github.com/CeeFeS/TinyPlanvas/pkg/logger"
	"github.com/CeeFeS/TinyPlanvas/pkg/messaging"
)

func main() {
	projectID := flag.String("project", "", "project to open; defaults to the first visible one")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewZapLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the record store client and authenticate
	client := repository.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, zapLogger)
	auth := repository.NewAuthRepository(client)

	var session *domainRepo.AuthSession
	if cfg.Auth.Token != "" {
		session, err = auth.Refresh(ctx, cfg.Auth.Token)
	} else {
		session, err = auth.AuthenticateWithPassword(ctx, cfg.Auth.Identity, cfg.Auth.Password)
	}
	if err != nil {
		zapLogger.Fatal("Failed to authenticate", zap.Error(err))
	}
	zapLogger.Info("Authenticated", zap.String("user_id", session.UserID))

	// Select the change-event transport
	var source domainRepo.EventSource
	switch cfg.Realtime.Transport {
	case "redis":
		redisClient, err := messaging.NewRedisClient(cfg.Realtime.Redis.Addr, cfg.Realtime.Redis.Password, cfg.Realtime.Redis.DB)
		if err != nil {
			zapLogger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
		source = realtime.NewRedisSource(redisClient, zapLogger)
	default:
		source = realtime.NewSSESource(cfg.Backend.BaseURL, client.Token, zapLogger)
	}

	// Initialize repositories
	projects := repository.NewProjectRepository(client)
	tasks := repository.NewTaskRepository(client)
	resources := repository.NewResourceRepository(client)
	allocations := repository.NewAllocationRepository(client)
	presenceRepo := repository.NewPresenceRepository(client)
	permissions := repository.NewPermissionRepository(client)

	// Resolve the project to open
	directory := usecase.NewProjectDirectory(projects, zapLogger)
	target := *projectID
	if target == "" {
		visible, err := directory.List(ctx)
		if err != nil {
			zapLogger.Fatal("Failed to list projects", zap.Error(err))
		}
		if len(visible) == 0 {
			zapLogger.Fatal("No project visible; create one or pass -project")
		}
		target = visible[0].ID.String()
	}

	// Wire the plan session
	store := usecase.NewPlanStore()
	mutations := usecase.NewMutationService(store, projects, tasks, resources, allocations, zapLogger)
	reconciler := usecase.NewReconciler(store, source, zapLogger)
	presence := usecase.NewPresenceService(presenceRepo, source, zapLogger)
	presence.SetIntervals(cfg.Presence.Heartbeat, cfg.Presence.Staleness)
	planSession := usecase.NewPlanSession(store, mutations, reconciler, presence,
		projects, tasks, resources, allocations, permissions,
		zapLogger, session.UserID, session.UserName)

	if err := planSession.Open(ctx, target); err != nil {
		zapLogger.Fatal("Failed to open project", zap.Error(err))
	}
	planSession.StartPresence(ctx, target)

	zapLogger.Info("Project open", zap.String("project_id", target))
	go watch(ctx, planSession, zapLogger)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zapLogger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	planSession.Close(shutdownCtx)
}

// watch logs a compact view of the plan whenever it changes.
func watch(ctx context.Context, session *usecase.PlanSession, zapLogger *zap.Logger) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var lastTasks int
	var lastCollaborators int
	var lastErr error
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := session.Snapshot()
			if snap.LastError != nil && snap.LastError != lastErr {
				lastErr = snap.LastError
				pkgErrors.LogError(zapLogger, snap.LastError, "Sync error")
			}
			if len(snap.Tasks) == lastTasks && len(snap.Collaborators) == lastCollaborators {
				continue
			}
			lastTasks = len(snap.Tasks)
			lastCollaborators = len(snap.Collaborators)

			fields := []zap.Field{
				zap.Int("tasks", len(snap.Tasks)),
				zap.Int("collaborators", len(snap.Collaborators)),
				zap.Bool("live_sync_down", snap.LiveSyncDown),
			}
			for _, task := range snap.Tasks {
				fields = append(fields, zap.Dict(task.Task.DisplayID,
					zap.String("name", task.Task.Name),
					zap.String("start", task.StartDate),
					zap.String("end", task.EndDate),
					zap.Float64("total_effort", task.TotalEffort)))
			}
			zapLogger.Info("Plan updated", fields...)
		}
	}
}
