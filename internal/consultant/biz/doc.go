// Package biz 提供顾问服务的业务逻辑层。
//
// 该包拆分为以下组件：
//   - Embedder: 调用 embedding 供应商并把结果规范为固定维度的单位向量
//   - Indexer: 从目录实体抽取多语言文本，写入向量存储，负责重建索引和孤儿清理
//   - Retriever: 带阈值和多样化的向量检索
//   - DialogueEngine: 会话状态机（意图识别、定价澄清、提示词组装、后处理）
//   - Learner: 从历史对话中提取问答模式，审核后写回知识库
//   - QuoteService: 报价请求持久化及线索投递
//   - KnowledgeWatcher: 监听 YAML 知识目录
//   - Service: 组合以上组件，供 handler 使用
package biz
