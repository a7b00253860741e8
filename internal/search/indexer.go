package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/modelibr/modelibr/internal/models"
	"github.com/modelibr/modelibr/internal/pkg/logger"
	"github.com/modelibr/modelibr/internal/pkg/mq"
	"github.com/modelibr/modelibr/internal/repositories"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const modelIndexName = "models"

// modelDoc 是写入 ES 的文档结构，只放检索需要的字段
type modelDoc struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Tags        string `json:"tags"`
	Description string `json:"description"`
}

// Service 模型检索：ES 可用时走全文索引，不可用时退化为数据库模糊查询
type Service struct {
	es        *elasticsearch.Client
	modelRepo repositories.ModelRepository
}

// NewService 创建检索服务，es 传 nil 表示仅使用数据库检索
func NewService(es *elasticsearch.Client, modelRepo repositories.ModelRepository) *Service {
	return &Service{
		es:        es,
		modelRepo: modelRepo,
	}
}

// Search 按关键词检索未删除的模型
func (s *Service) Search(ctx context.Context, keyword string) ([]models.Model, error) {
	if keyword == "" {
		return s.modelRepo.FindAlive()
	}
	if s.es == nil {
		return s.modelRepo.SearchByKeyword(keyword)
	}

	results, err := s.searchES(ctx, keyword)
	if err != nil {
		// ES 故障不阻塞检索，退回数据库路径
		logger.Warn("Search: Elasticsearch query failed, falling back to SQL", zap.Error(err))
		return s.modelRepo.SearchByKeyword(keyword)
	}
	return results, nil
}

func (s *Service) searchES(ctx context.Context, keyword string) ([]models.Model, error) {
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  keyword,
				"fields": []string{"name^2", "tags", "description"},
			},
		},
		"size": 50,
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(modelIndexName),
		s.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search returned %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source modelDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	// 命中结果回表取完整记录，同时过滤掉索引尚未同步的已删模型
	results := make([]models.Model, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		model, err := s.modelRepo.FindByID(hit.Source.ID)
		if err != nil || model.IsDeleted {
			continue
		}
		results = append(results, *model)
	}
	return results, nil
}

// IndexModel 把模型写入(或覆盖)索引
func (s *Service) IndexModel(ctx context.Context, model *models.Model) error {
	if s.es == nil {
		return nil
	}
	doc := modelDoc{
		ID:          model.ID,
		Name:        model.Name,
		Tags:        model.Tags,
		Description: model.Description,
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	res, err := s.es.Index(
		modelIndexName,
		bytes.NewReader(body),
		s.es.Index.WithContext(ctx),
		s.es.Index.WithDocumentID(strconv.FormatUint(model.ID, 10)),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch index failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch index returned %s", res.Status())
	}
	return nil
}

// RemoveModel 从索引里删除模型文档，文档不存在不算错
func (s *Service) RemoveModel(ctx context.Context, modelID uint64) error {
	if s.es == nil {
		return nil
	}
	res, err := s.es.Delete(
		modelIndexName,
		strconv.FormatUint(modelID, 10),
		s.es.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch delete failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("elasticsearch delete returned %s", res.Status())
	}
	return nil
}

// RunIndexer 订阅领域事件队列，把模型变更同步进索引
// 阻塞直到订阅失败或 MQ 关闭
func (s *Service) RunIndexer(mqClient *mq.RabbitMQClient) error {
	if s.es == nil {
		logger.Info("RunIndexer: Elasticsearch not configured, indexer disabled")
		return nil
	}
	return mqClient.Consume(mq.DomainEventQueueName, func(msg amqp.Delivery) {
		var event models.DomainEvent
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			logger.Error("RunIndexer: Failed to decode domain event, dropping", zap.Error(err))
			_ = msg.Ack(false)
			return
		}
		s.handleEvent(&event)
		_ = msg.Ack(false)
	})
}

func (s *Service) handleEvent(event *models.DomainEvent) {
	ctx := context.Background()
	switch event.Type {
	case models.EventModelUploaded:
		model, err := s.modelRepo.FindByID(event.ModelID)
		if err != nil {
			logger.Warn("handleEvent: Model in event no longer exists", zap.Uint64("modelID", event.ModelID))
			return
		}
		if model.IsDeleted {
			return
		}
		if err := s.IndexModel(ctx, model); err != nil {
			logger.Error("handleEvent: Failed to index model", zap.Error(err), zap.Uint64("modelID", event.ModelID))
		}
	case models.EventModelDeleted:
		if err := s.RemoveModel(ctx, event.ModelID); err != nil {
			logger.Error("handleEvent: Failed to remove model from index", zap.Error(err), zap.Uint64("modelID", event.ModelID))
		}
	}
}
