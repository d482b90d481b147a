package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"

	"github.com/forgeyard/forge_api/shared"
)

// ArtifactService stores package blobs in object storage, keyed by the
// content key recorded on the package row.
type ArtifactService struct {
	appContext.DefaultService

	client     *minio.Client
	bucketName string
	endpoint   string
	accessKey  string
	secretKey  string
	useSSL     bool
}

const ARTIFACT_SVC = "artifact_svc"

func (svc ArtifactService) Id() string {
	return ARTIFACT_SVC
}

func (svc *ArtifactService) Configure(ctx *appContext.Context) error {
	svc.endpoint = shared.GetEnvString("MINIO_ENDPOINT", "localhost:9000")
	svc.accessKey = shared.GetEnvString("MINIO_ACCESS_KEY", "admin")
	svc.secretKey = shared.GetEnvString("MINIO_SECRET_KEY", "password123")
	svc.useSSL = shared.GetEnvBool("MINIO_USE_SSL", false)
	svc.bucketName = shared.GetEnvString("MINIO_BUCKET_NAME", "forge-packages")

	return svc.DefaultService.Configure(ctx)
}

func (svc *ArtifactService) Start() error {
	client, err := minio.New(svc.endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(svc.accessKey, svc.secretKey, ""),
		Secure: svc.useSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to create MinIO client: %v", err)
	}

	svc.client = client

	if err := svc.ensureBucket(); err != nil {
		return fmt.Errorf("failed to ensure bucket exists: %v", err)
	}

	log.Printf("Artifact storage started with endpoint: %s", svc.endpoint)
	return nil
}

func (svc *ArtifactService) ensureBucket() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	exists, err := svc.client.BucketExists(ctx, svc.bucketName)
	if err != nil {
		return err
	}

	if !exists {
		if err := svc.client.MakeBucket(ctx, svc.bucketName, minio.MakeBucketOptions{}); err != nil {
			return err
		}
		log.Printf("Created bucket: %s", svc.bucketName)
	}

	return nil
}

func (svc *ArtifactService) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := svc.client.PutObject(ctx, svc.bucketName, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	return err
}

func (svc *ArtifactService) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := svc.client.GetObject(ctx, svc.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	return io.ReadAll(obj)
}

func (svc *ArtifactService) Delete(ctx context.Context, key string) error {
	return svc.client.RemoveObject(ctx, svc.bucketName, key, minio.RemoveObjectOptions{})
}
