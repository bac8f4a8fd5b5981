// Package store 提供顾问服务的数据存储层。
//
// 关系型数据（会话、消息、知识条目、学习模式、报价请求、目录实体）通过 gorm 访问，
// 向量数据由 VectorStore 抽象，支持 sql、pgvector 和 milvus 三种后端。
// 会话锁用于串行化同一会话的对话轮次，优先使用 redis，未配置时退化为进程内实现。
package store
