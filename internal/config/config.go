package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config 结构体包含所有应用的配置
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	MySQL         MySQLConfig         `mapstructure:"mysql"`
	Redis         RedisConfig         `mapstructure:"redis"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	AliyunOSS     AliyunOSSConfig     `mapstructure:"aliyun_oss"`
	RabbitMQ      RabbitMQConfig      `mapstructure:"rabbitmq"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Thumbnail     ThumbnailConfig     `mapstructure:"thumbnail"`
	Recycle       RecycleConfig       `mapstructure:"recycle"`
	Log           LogConfig           `mapstructure:"log"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"` // development / production
}

// MySQLConfig 数据库配置
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MinIOConfig MinIO配置
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

type AliyunOSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"` // 例如: oss-cn-hangzhou.aliyuncs.com
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// RabbitMQConfig RabbitMQ配置
type RabbitMQConfig struct {
	URL string `mapstructure:"url"`
}

// StorageConfig 存储配置，type 取值: local / minio / aliyun_oss
type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalBasePath string `mapstructure:"local_base_path"`
}

// ThumbnailConfig 缩略图渲染配置
type ThumbnailConfig struct {
	// 渲染命令，占位符 {input} {output} 会被替换为实际路径
	// 例如: "blender --background --python render_preview.py -- {input} {output}"
	RenderCommand string `mapstructure:"render_command"`
	// 单个任务租约时长(分钟)，入队时写入任务行
	LockTimeoutMinutes int `mapstructure:"lock_timeout_minutes"`
	// worker 轮询间隔(秒)
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
	// 租约回收巡检 cron 表达式
	ReclaimCron string `mapstructure:"reclaim_cron"`
}

// RecycleConfig 回收站配置
type RecycleConfig struct {
	// 文件进入回收记录后到物理清除的宽限期(小时)
	GraceHours int `mapstructure:"grace_hours"`
	// 物理清除巡检 cron 表达式
	PurgeCron string `mapstructure:"purge_cron"`
}

// zap日志配置
type LogConfig struct {
	OutputPath string `mapstructure:"output_path"`
	ErrorPath  string `mapstructure:"error_path"`
	Level      string `mapstructure:"level"`
}

// ElasticsearchConfig 定义 Elasticsearch 连接配置
// Addresses 为空时禁用搜索索引，检索退化为数据库 LIKE 查询
type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

var AppConfig *Config // 全局应用配置实例

// LoadConfig 加载配置
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")         // 配置文件名 (不带扩展名)
	viper.SetConfigType("yaml")           // 配置文件类型
	viper.AddConfigPath(".")              // 在当前目录查找配置文件
	viper.AddConfigPath("./configs")      // 也可以添加其他路径
	viper.AddConfigPath("/etc/modelibr/") // 生产环境常见路径

	// 读取环境变量，例如 MODELIBR_SERVER_PORT 对应 server.port
	viper.SetEnvPrefix("MODELIBR")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 默认值
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local_base_path", "./uploads")
	viper.SetDefault("thumbnail.lock_timeout_minutes", 30)
	viper.SetDefault("thumbnail.poll_interval_seconds", 5)
	viper.SetDefault("thumbnail.reclaim_cron", "*/5 * * * *")
	viper.SetDefault("recycle.grace_hours", 72)
	viper.SetDefault("recycle.purge_cron", "17 * * * *")
	viper.SetDefault("log.output_path", "logs/app.log")
	viper.SetDefault("log.error_path", "logs/error.log")
	viper.SetDefault("log.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// 配置文件未找到不是致命错误，可以依赖环境变量和默认值
			log.Println("Warning: config file not found, using environment variables or default values.")
		} else {
			log.Fatalf("Fatal error reading config file: %s \n", err)
			return nil, err
		}
	}

	AppConfig = &Config{}
	if err := viper.Unmarshal(AppConfig); err != nil {
		log.Fatalf("Fatal error unmarshaling config: %s \n", err)
		return nil, err
	}

	log.Println("Configuration loaded successfully with Viper.")
	return AppConfig, nil
}
