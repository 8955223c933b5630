// 版权所有 2024 SpeechFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 提供数据库 Schema 迁移管理能力，支持 PostgreSQL、
MySQL 与 SQLite 三种数据库，基于 golang-migrate 实现。

# 概述

本包通过 embed.FS 内嵌各数据库方言的 SQL 迁移文件（当前为
cloned_voices 克隆音色登记表），结合 golang-migrate 引擎实现版本化的
Schema 变更管理。SQLite 使用纯 Go 驱动，无需 CGO。

# 核心接口与类型

  - Migrator：迁移器接口，定义 Up/Down/Steps/Force/Version/Status/
    Info/Close 操作集。
  - DefaultMigrator：Migrator 的默认实现，封装 golang-migrate 实例，
    迁移日志写入 zap。
  - Config：迁移配置，包含数据库类型、连接 URL、迁移表名与锁超时。
  - CLI：命令行交互层，Run 按子命令分派并格式化输出。

# 主要能力

  - 工厂函数：NewMigratorFromDatabaseConfig / NewMigratorFromURL。
  - 辅助工具：ParseDatabaseType 解析类型字符串，BuildDatabaseURL
    按方言拼接连接 URL。
*/
package migration
