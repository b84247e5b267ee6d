package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/singleflight"

	"ebay_dev_v1_202608/internal/api/dto"
)

// ==================== 接口定义 ====================

// ObjectStore 词库文件读取接口
type ObjectStore interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// ==================== 配置 ====================

type TaxonomyConfig struct {
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	BasePath  string // 词库根路径，默认 taxonomy
}

// ==================== S3 实现 ====================

type s3ObjectStore struct {
	client *s3.Client
	bucket string
}

// NewS3ObjectStore 创建 S3 词库存储
func NewS3ObjectStore(cfg *TaxonomyConfig) (ObjectStore, error) {
	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("加载AWS配置失败: %v", err)
	}

	return &s3ObjectStore{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
	}, nil
}

func (s *s3ObjectStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("读取S3对象失败 %s: %v", key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// ==================== 词库服务 ====================

// 分类树节点，对应 eBay Taxonomy API 的 getCategoryTree 结构
type categoryNode struct {
	Category struct {
		CategoryID   string `json:"categoryId"`
		CategoryName string `json:"categoryName"`
	} `json:"category"`
	ChildCategoryTreeNodes []categoryNode `json:"childCategoryTreeNodes,omitempty"`
}

// TaxonomyService eBay 分类词库：叶子分类、成色映射、Item Specifics 属性
// 词库由离线任务同步到 S3，本服务只读并缓存
type TaxonomyService struct {
	store    ObjectStore
	basePath string

	treeGroup  singleflight.Group
	treeMu     sync.RWMutex
	treeLoaded bool
	tree       []categoryNode

	cache sync.Map // key -> 解析后的文件内容
}

// NewTaxonomyService 创建词库服务
func NewTaxonomyService(store ObjectStore, basePath string) *TaxonomyService {
	if basePath == "" {
		basePath = "taxonomy"
	}
	return &TaxonomyService{
		store:    store,
		basePath: basePath,
	}
}

// LeafCategoryID 沿分类路径（根到叶）下钻，返回叶子分类 ID
func (s *TaxonomyService) LeafCategoryID(ctx context.Context, categoryPath []string) (string, error) {
	if len(categoryPath) == 0 {
		return "", ErrCategoryNotFound
	}

	nodes, err := s.categoryTree(ctx)
	if err != nil {
		return "", err
	}

	var current *categoryNode
	for _, name := range categoryPath {
		current = nil
		for i := range nodes {
			if nodes[i].Category.CategoryName == name {
				current = &nodes[i]
				break
			}
		}
		if current == nil {
			return "", fmt.Errorf("%w: %s", ErrCategoryNotFound, strings.Join(categoryPath, " > "))
		}
		nodes = current.ChildCategoryTreeNodes
	}
	return current.Category.CategoryID, nil
}

// categoryTree 懒加载分类树
// 加载失败不缓存错误，S3 抖动后下一次调用照常重试；并发调用合并为一次读取
func (s *TaxonomyService) categoryTree(ctx context.Context) ([]categoryNode, error) {
	s.treeMu.RLock()
	if s.treeLoaded {
		tree := s.tree
		s.treeMu.RUnlock()
		return tree, nil
	}
	s.treeMu.RUnlock()

	v, err, _ := s.treeGroup.Do("categorytree", func() (interface{}, error) {
		s.treeMu.RLock()
		if s.treeLoaded {
			tree := s.tree
			s.treeMu.RUnlock()
			return tree, nil
		}
		s.treeMu.RUnlock()

		data, err := s.store.Fetch(ctx, path.Join(s.basePath, "categorytree.json"))
		if err != nil {
			return nil, err
		}
		var root categoryNode
		if err := json.Unmarshal(data, &root); err != nil {
			return nil, fmt.Errorf("解析分类树失败: %v", err)
		}

		s.treeMu.Lock()
		s.tree = root.ChildCategoryTreeNodes
		s.treeLoaded = true
		s.treeMu.Unlock()
		return root.ChildCategoryTreeNodes, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]categoryNode), nil
}

// EbayCondition 把中文/日文成色表述翻译成 eBay condition enum
// 各分类可用的成色选项不同，按分类 ID 查询
func (s *TaxonomyService) EbayCondition(ctx context.Context, categoryID, conditionSrc string) (string, error) {
	key := path.Join(s.basePath, "conditions", categoryID+".json")

	var conditionMap struct {
		ItemConditions []dto.ItemCondition `json:"itemConditions"`
	}
	if err := s.fetchJSON(ctx, key, &conditionMap); err != nil {
		return "", err
	}

	for _, c := range conditionMap.ItemConditions {
		if strings.EqualFold(c.ConditionDescription, conditionSrc) {
			return translateToEbayCondition(c.ConditionID)
		}
	}
	return "", fmt.Errorf("%w: %s (category %s)", ErrConditionNotFound, conditionSrc, categoryID)
}

// Aspects 返回分类下的 Item Specifics 属性定义
func (s *TaxonomyService) Aspects(ctx context.Context, categoryID string) ([]dto.Aspect, error) {
	key := path.Join(s.basePath, "aspects", categoryID+".json")

	var payload struct {
		Aspects []dto.Aspect `json:"aspects"`
	}
	if err := s.fetchJSON(ctx, key, &payload); err != nil {
		return nil, err
	}
	return payload.Aspects, nil
}

// fetchJSON 带缓存的文件读取，词库文件不会在运行期变化
func (s *TaxonomyService) fetchJSON(ctx context.Context, key string, v interface{}) error {
	if cached, ok := s.cache.Load(key); ok {
		return json.Unmarshal(cached.([]byte), v)
	}
	data, err := s.store.Fetch(ctx, key)
	if err != nil {
		return err
	}
	s.cache.Store(key, data)
	return json.Unmarshal(data, v)
}

// translateToEbayCondition 成色 ID 映射为 eBay enum
func translateToEbayCondition(conditionID string) (string, error) {
	switch conditionID {
	case "1000":
		return "NEW", nil
	case "1500":
		return "NEW_OTHER", nil
	case "1750":
		return "NEW_WITH_DEFECTS", nil
	case "2500":
		return "SELLER_REFURBISHED", nil
	case "2750":
		return "LIKE_NEW", nil
	case "3000", "3010", "3020":
		return "USED_EXCELLENT", nil
	case "4000":
		return "USED_VERY_GOOD", nil
	case "5000":
		return "USED_GOOD", nil
	case "6000":
		return "USED_ACCEPTABLE", nil
	case "7000":
		return "FOR_PARTS_OR_NOT_WORKING", nil
	default:
		return "", fmt.Errorf("%w: invalid condition id %s", ErrConditionNotFound, conditionID)
	}
}
