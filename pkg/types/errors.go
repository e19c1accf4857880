package types

import "errors"

// 错误分类: 配置类与输入类错误在 Setup/Run 时中止回测.
// 数据缺失与交易拒绝属于局部情况, 不作为错误传播,
// 记录在当日报告的事件与拒绝原因中, 回测继续
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrFatalInput    = errors.New("fatal input")
)
