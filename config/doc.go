// Package config 提供 speechflow 的配置管理功能。
//
// 包含配置加载（默认值 → YAML → 环境变量）、结构性校验与
// 基于文件轮询的热重载。合成参数的取值范围由 speech 包负责校验。
package config
