package filestore

import (
	"fmt"
	"strings"
	"time"

	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/config"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// EvidenceStore 证据照片的对象存储协作方。
// 核心只保存 URL；二进制上传由前端直传对象存储，不经过本服务。
type EvidenceStore interface {
	// ObjectURL 把对象 key 换成可访问的 URL（预签名）。
	// key 已经是完整 URL 时原样返回，便于兼容历史数据。
	ObjectURL(key string) (string, error)
}

// S3Store 基于 S3（或 MinIO 等兼容实现）的 EvidenceStore。
type S3Store struct {
	s3     *s3.S3
	bucket string
	ttl    time.Duration
}

// NewS3Store 创建 S3 客户端。Endpoint 非空时走自建存储（path-style）。
func NewS3Store(cfg config.StorageConfig) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is empty")
	}

	awsCfg := &aws.Config{
		Region: aws.String(cfg.Region),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}

	ttl := time.Duration(cfg.URLTTLMinute) * time.Minute
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &S3Store{s3: s3.New(sess), bucket: cfg.Bucket, ttl: ttl}, nil
}

func (s *S3Store) ObjectURL(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", nil
	}
	if strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
		return key, nil
	}

	req, _ := s.s3.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	url, err := req.Presign(s.ttl)
	if err != nil {
		return "", fmt.Errorf("failed to presign object %s: %w", key, err)
	}
	return url, nil
}
