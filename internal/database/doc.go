// 版权所有 2024 SpeechFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 负责打开 GORM 连接并管理连接池，支持 PostgreSQL、
MySQL 与纯 Go 的 SQLite。

# 概述

Open 按配置选择方言并创建 SQLite 数据目录，GORM 日志接入 zap。
PoolManager 统一管理连接池参数与生命周期，后台健康检查定时探活，
并把连接统计交给观察者导出为指标。

# 核心类型

  - PoolManager：连接池管理器，提供 DB()、Ping()、Stats()、Close()。
  - PoolConfig：连接池配置，Validate 检查参数合法性。
  - StatsObserver：健康检查后的统计回调。
*/
package database
