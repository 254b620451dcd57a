package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/bimkit/bimkit/internal/api"
	"github.com/bimkit/bimkit/internal/config"
	"github.com/bimkit/bimkit/internal/events"
	"github.com/bimkit/bimkit/internal/geo"
	"github.com/bimkit/bimkit/internal/influx"
	"github.com/bimkit/bimkit/internal/loader"
	"github.com/bimkit/bimkit/internal/storage"
	"github.com/bimkit/bimkit/internal/storage/factory"
	"github.com/bimkit/bimkit/internal/worker"
)

// loadParams builds the load request for one file, applying the configured
// site origin when loader.georeference is set.
func loadParams(path string) (loader.Params, error) {
	p := loader.Params{Path: path}

	coords := config.GetString("loader.georeference")
	if coords == "" {
		return p, nil
	}
	origin, err := geo.ParseOrigin(coords)
	if err != nil {
		return p, fmt.Errorf("loader.georeference %q: %w", coords, err)
	}
	p.Georeference = &origin
	return p, nil
}

// runInfo loads each file synchronously and prints its statistics.
func runInfo(paths []string) error {
	ctx := context.Background()

	for _, path := range paths {
		params, err := loadParams(path)
		if err != nil {
			return err
		}
		res, err := registry.Load(ctx, params)
		if err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}

		s := res.Stats
		fmt.Printf("%s (%s)\n", path, s.Format)
		fmt.Printf("  entities:    %d\n", s.Scene.Entities)
		fmt.Printf("  meshes:      %d\n", s.Scene.Meshes)
		fmt.Printf("  geometries:  %d\n", s.Scene.Geometries)
		fmt.Printf("  vertices:    %d\n", s.Scene.Vertices)
		fmt.Printf("  triangles:   %d\n", s.Scene.Triangles)
		fmt.Printf("  metaObjects: %d\n", s.MetaObjects)
		fmt.Printf("  duration:    %s\n", s.Duration)

		aabb := res.Scene.AABB()
		if !aabb.Empty() {
			fmt.Printf("  aabb:        [%g %g %g] .. [%g %g %g]\n",
				aabb.Min[0], aabb.Min[1], aabb.Min[2],
				aabb.Max[0], aabb.Max[1], aabb.Max[2])
		}
		if o := res.Scene.Origin; o != nil {
			fmt.Printf("  site:        %g, %g (EPSG:3857 %.1f, %.1f)\n",
				o.Longitude, o.Latitude, o.X, o.Y)
		}
	}
	return nil
}

// runLoad loads the files through the worker pool and saves each finished
// model to the configured storage backend.
func runLoad(paths []string) error {
	ctx := context.Background()
	log := logManager.Logger()

	backend, err := factory.NewBackend(config.GetStorageConfig(), logManager)
	if err != nil {
		return fmt.Errorf("creating storage backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("initializing storage backend: %w", err)
	}
	defer backend.Close()

	influxManager := setupInflux()

	bus, err := events.New(log)
	if err != nil {
		return fmt.Errorf("creating event bus: %w", err)
	}
	bus.Subscribe(events.ModelLoaded, func(e events.Event) {
		log.Info("Model loaded", "modelId", e.ModelID)
	}, events.Logged())

	pool, err := worker.NewPool(config.GetInt("loader.workers"), bus, log)
	if err != nil {
		return fmt.Errorf("creating worker pool: %w", err)
	}
	pool.Start(ctx)

	for i, path := range paths {
		ldr, err := registry.For(path)
		if err != nil {
			return fmt.Errorf("no loader for %s: %w", path, err)
		}
		params, err := loadParams(path)
		if err != nil {
			return err
		}
		job := worker.Job{
			ID:     fmt.Sprintf("job-%d-%s", i, filepath.Base(path)),
			Loader: ldr,
			Params: params,
		}
		if err := pool.Submit(ctx, job); err != nil {
			return fmt.Errorf("submitting %s: %w", path, err)
		}
	}
	pool.Close()
	go pool.Wait()

	var failed int
	for res := range pool.Results() {
		if res.Err != nil {
			failed++
			continue
		}

		if err := backend.SaveModel(res.Result); err != nil {
			log.Error("Failed to save model", "jobId", res.JobID, "error", err)
			failed++
			continue
		}

		manifest := storage.ManifestFromResult(res.Result)
		recordTelemetry(influxManager, manifest, res)
		uploadExport(backend, manifest)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d loads failed", failed, len(paths))
	}
	return nil
}

// runViewpoints lists the viewpoints saved for a model.
func runViewpoints(modelID string) error {
	backend, err := factory.NewBackend(config.GetStorageConfig(), logManager)
	if err != nil {
		return fmt.Errorf("creating storage backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("initializing storage backend: %w", err)
	}
	defer backend.Close()

	viewpoints, err := backend.GetViewpoints(modelID)
	if err != nil {
		return err
	}
	if len(viewpoints) == 0 {
		fmt.Printf("no viewpoints saved for %s\n", modelID)
		return nil
	}

	for _, vp := range viewpoints {
		camera := "none"
		if vp.Viewpoint.PerspectiveCamera != nil {
			p := vp.Viewpoint.PerspectiveCamera.CameraViewPoint
			camera = fmt.Sprintf("perspective eye=(%g, %g, %g)", p.X, p.Y, p.Z)
		} else if vp.Viewpoint.OrthogonalCamera != nil {
			p := vp.Viewpoint.OrthogonalCamera.CameraViewPoint
			camera = fmt.Sprintf("orthogonal eye=(%g, %g, %g)", p.X, p.Y, p.Z)
		}
		fmt.Printf("%s  %s  %s\n", vp.CreatedAt.Format(time.RFC3339), vp.Name, camera)
	}
	return nil
}

// setupInflux connects the telemetry manager, or returns nil when disabled.
func setupInflux() *influx.Manager {
	if !config.GetBool("influx.enabled") {
		return nil
	}

	zlog := zerolog.New(os.Stderr).With().Timestamp().Logger()
	backupPath := filepath.Join(config.GetString("logsDir"),
		fmt.Sprintf("influx_backup.%s.gz", sessionStart.Format("20060102_150405")))

	m := influx.NewManager(zlog, backupPath)
	if err := m.Connect(); err != nil {
		logManager.Logger().Warn("InfluxDB telemetry disabled", "error", err)
		return nil
	}
	return m
}

func recordTelemetry(m *influx.Manager, manifest storage.Manifest, res worker.Result) {
	if m == nil {
		return
	}

	point := influx.LoadPoint(manifest.ModelID, manifest.Format, res.Duration,
		manifest.Entities, manifest.Triangles, res.Err)
	if err := m.WritePoint(context.Background(), influx.BucketLoadPerformance, point); err != nil {
		logManager.Logger().Warn("Failed to record load telemetry", "error", err)
	}
}

// uploadExport sends the exported file to the web frontend when an API key
// is configured and the backend produced one.
func uploadExport(backend storage.Backend, manifest storage.Manifest) {
	apiKey := config.GetString("api.apiKey")
	if apiKey == "" {
		return
	}

	uploadable, ok := backend.(storage.Uploadable)
	if !ok || uploadable.GetExportedFilePath() == "" {
		return
	}

	client := api.New(config.GetString("api.serverUrl"), apiKey)
	if err := client.Upload(uploadable.GetExportedFilePath(), manifest); err != nil {
		logManager.Logger().Error("Upload failed", "modelId", manifest.ModelID, "error", err)
	} else {
		logManager.Logger().Info("Uploaded model export", "modelId", manifest.ModelID)
	}
}

// shutdown flushes log pipelines before exit.
func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if logManager != nil {
		_ = logManager.Flush(ctx)
	}
	if otelProvider != nil {
		_ = otelProvider.Shutdown(ctx)
	}
}
