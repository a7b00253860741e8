package xerr

import "errors"

var (
	// 通用错误
	ErrInternalServer = errors.New("服务器内部错误")

	// 客户端请求错误
	ErrInvalidParams        = errors.New("无效的请求参数")
	ErrValidationFailed     = errors.New("参数验证失败")
	ErrVersionModelMismatch = errors.New("版本不属于该模型")
	ErrVersionDeleted       = errors.New("版本已被删除，无法设为活动版本")
	ErrIncompleteOrder      = errors.New("版本排序列表必须完整覆盖该模型的版本")
	ErrTextureTypeInvalid   = errors.New("贴图类型不合法")
	ErrFileNotRenderable    = errors.New("该文件格式不支持生成缩略图")

	// 资源未找到错误
	ErrModelNotFound        = errors.New("模型不存在")
	ErrVersionNotFound      = errors.New("模型版本不存在")
	ErrFileNotFound         = errors.New("文件不存在")
	ErrTextureSetNotFound   = errors.New("贴图集不存在")
	ErrTextureNotFound      = errors.New("贴图不存在")
	ErrThumbnailNotFound    = errors.New("缩略图不存在")
	ErrJobNotFound          = errors.New("缩略图任务不存在")
	ErrPackNotFound         = errors.New("资产包不存在")
	ErrProjectNotFound      = errors.New("项目不存在")
	ErrRecycledFileNotFound = errors.New("回收记录不存在")

	// 业务规则冲突
	ErrAlreadyExists        = errors.New("资源已存在")
	ErrLastVersion          = errors.New("模型必须保留至少一个未删除版本")
	ErrDuplicateAssociation = errors.New("关联关系已存在")
	ErrJobNotClaimable      = errors.New("任务不处于可领取状态")
	ErrJobNotProcessing     = errors.New("任务不处于处理中状态")
	ErrLeaseLost            = errors.New("任务租约已被其他工作者接管")

	// 数据库与外部服务错误
	ErrDatabaseError = errors.New("数据库操作失败")
	ErrStorageError  = errors.New("存储服务操作失败")
	ErrMQError       = errors.New("消息队列操作失败")
	ErrRenderError   = errors.New("渲染器执行失败")
)
