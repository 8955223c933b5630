// Copyright (c) SpeechFlow Authors.
// Licensed under the MIT License.

/*
Package voiceclone 管理克隆音色的完整生命周期。

Manager 负责上传源音频、调用上游克隆、在本地登记音色，并支持批量
克隆、删除、单个与批量试听以及使用记录。上游会删除 7 天未使用的克隆音色，
Expiring 返回接近该期限的音色用于提醒。
*/
package voiceclone
