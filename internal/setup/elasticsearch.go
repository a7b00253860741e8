package setup

import (
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/modelibr/modelibr/internal/config"
	"github.com/modelibr/modelibr/internal/pkg/logger"
	"go.uber.org/zap"
)

// InitElasticsearch 初始化 Elasticsearch 客户端
// 未配置地址时返回 nil，调用方需要把搜索退化为数据库查询
func InitElasticsearch(cfg *config.ElasticsearchConfig) (*elasticsearch.Client, error) {
	if len(cfg.Addresses) == 0 {
		logger.Info("Elasticsearch not configured, model search falls back to database queries.")
		return nil, nil
	}

	esCfg := elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		logger.Error("Failed to create Elasticsearch client", zap.Error(err))
		return nil, err
	}

	// 尝试连接并获取集群信息，验证连接是否成功
	res, err := client.Info()
	if err != nil {
		logger.Error("Failed to connect to Elasticsearch", zap.Error(err))
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		logger.Error("Error connecting to Elasticsearch", zap.String("status", res.Status()))
		return nil, fmt.Errorf("elasticsearch info request failed: %s", res.Status())
	}

	logger.Info("Elasticsearch client initialized successfully.")
	return client, nil
}
