// Command falconeri-worker runs the per-pod reservation loop of spec
// §6. Its environment contract: FALCONERI_NODE_NAME, FALCONERI_POD_NAME
// and argv[1] = job uuid.
package main

import (
	"context"
	"os"

	"github.com/faradayio/falconeri/pkg/config"
	"github.com/faradayio/falconeri/pkg/logger/log"
	"github.com/faradayio/falconeri/pkg/storage"
	"github.com/faradayio/falconeri/pkg/worker"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: falconeri-worker <job-id>")
	}
	jobID := os.Args[1]

	cfg, err := config.Load(os.Getenv("FALCONERI_CONFIG"))
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	client := worker.NewClient(cfg.APIURL, cfg.AdminPassword)

	ctx := context.Background()
	job, err := client.GetJob(ctx, jobID)
	if err != nil {
		log.Fatalf("fetching job %s: %v", jobID, err)
	}
	command, err := worker.UnmarshalCommand(job.Command)
	if err != nil {
		log.Fatalf("decoding job command: %v", err)
	}

	storageFactory, err := buildStorageFactory(ctx)
	if err != nil {
		log.Fatalf("building storage backends: %v", err)
	}

	w := worker.New(worker.Config{
		Client:      client,
		Storage:     storageFactory,
		JobID:       jobID,
		Command:     command,
		EgressURI:   job.EgressURI,
		InputRoot:   cfg.InputRoot,
		ScratchRoot: cfg.ScratchRoot,
		NodeName:    cfg.Worker.NodeName,
		PodName:     cfg.Worker.PodName,
	})

	if err := w.Run(ctx); err != nil {
		log.Fatalf("worker run failed: %v", err)
	}
}

func buildStorageFactory(ctx context.Context) (*storage.Factory, error) {
	backends := map[string]storage.Backend{}

	if gcs, err := storage.NewGCSBackend(ctx); err == nil {
		backends["gs"] = gcs
	} else {
		log.Warnf("gcs backend unavailable: %v", err)
	}

	s3Backend, err := storage.NewS3Backend(ctx, storage.S3Config{
		Endpoint:        os.Getenv("FALCONERI_S3_ENDPOINT"),
		Region:          os.Getenv("FALCONERI_S3_REGION"),
		AccessKeyID:     os.Getenv("FALCONERI_S3_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("FALCONERI_S3_SECRET_ACCESS_KEY"),
		UsePathStyle:    os.Getenv("FALCONERI_S3_PATH_STYLE") == "true",
	})
	if err == nil {
		backends["s3"] = s3Backend
	} else {
		log.Warnf("s3 backend unavailable: %v", err)
	}

	return storage.NewFactory(backends), nil
}
