package xerr

// 定义了统一的业务错误码
const (
	SuccessCode = 20000 // 通用成功码

	// --- 客户端请求错误系列 (400xx) ---
	InvalidParamsCode        = 40000 // 无效的请求参数
	ValidationFailedCode     = 40001 // 参数验证失败
	VersionModelMismatchCode = 40002 // 版本不属于该模型
	VersionDeletedCode       = 40003 // 版本已被删除，无法作为活动版本
	IncompleteOrderCode      = 40004 // 版本排序列表不完整或包含外部版本
	TextureTypeInvalidCode   = 40005 // 贴图类型不合法
	FileNotRenderableCode    = 40006 // 文件格式不支持渲染缩略图

	// --- 资源未找到错误系列 (404xx) ---
	NotFoundCode             = 40400 // 通用资源未找到
	ModelNotFoundCode        = 40401 // 模型不存在
	VersionNotFoundCode      = 40402 // 模型版本不存在
	FileNotFoundCode         = 40403 // 文件不存在
	TextureSetNotFoundCode   = 40404 // 贴图集不存在
	ThumbnailNotFoundCode    = 40405 // 缩略图不存在
	JobNotFoundCode          = 40406 // 缩略图任务不存在
	PackNotFoundCode         = 40407 // 资产包不存在
	ProjectNotFoundCode      = 40408 // 项目不存在
	RecycledFileNotFoundCode = 40409 // 回收记录不存在
	TextureNotFoundCode      = 40410 // 贴图不存在

	// --- 业务规则冲突系列 (409xx) ---
	AlreadyExistsCode        = 40900 // 名称或哈希冲突
	LastVersionCode          = 40901 // 模型仅剩的未删除版本不能删除
	DuplicateAssociationCode = 40902 // 重复的关联关系
	JobNotClaimableCode      = 40903 // 任务不处于可领取状态
	JobNotProcessingCode     = 40904 // 任务不处于处理中状态，无法终结
	LeaseLostCode            = 40905 // 任务租约已被其他工作者接管

	// --- 服务器内部错误系列 (500xx) ---
	InternalServerErrorCode = 50000 // 服务器内部通用错误
	DatabaseErrorCode       = 50001 // 数据库操作失败
	StorageErrorCode        = 50002 // 存储服务操作失败
	MQErrorCode             = 50003 // 消息队列操作失败
	RenderErrorCode         = 50004 // 渲染器执行失败
)
