// Package audiostore 管理本地音频文件：克隆所用的源音频目录
// （根目录、main/、prompts/）与合成结果的临时缓存目录。
package audiostore
