package prompts

// ============================================================================
// System Prompt
// ============================================================================

// FinancialTaggerSystemPrompt defines the role shared by extraction and summarization.
// 系統提示詞：台股財經新聞標註助手
const FinancialTaggerSystemPrompt = `你是專業的台灣財經新聞分析師，負責閱讀每日財經新聞並產出結構化標註結果。

【工作原則】
1. 只根據新聞內文判斷，不可引用外部資訊或自行推測
2. 股票標的以台灣證券交易所或櫃買中心掛牌公司為限
3. 一律以 JSON 物件回覆，不得輸出 JSON 以外的任何文字或 markdown 標記`

// ============================================================================
// Stock Target Extraction
// ============================================================================

// ExtractStockTargetPrompt asks for the single primary stock target of an article.
// Placeholders: {json_schema}, {news_text}
const ExtractStockTargetPrompt = `請從以下新聞中找出「最主要」的一檔台股股票標的。

【規則】
- 只能回傳一檔，格式為「公司簡稱(四位數股票代號)」，例如：台積電(2330)
- 公司全名請改用市場通用簡稱，例如「台灣積體電路製造股份有限公司」寫作「台積電」
- 若新聞未提及任何掛牌公司，請回傳「無」
- 不可回傳 ETF、指數或海外股票

【輸出格式】
請依照以下 JSON Schema 回覆：
{json_schema}

【新聞內容】
{news_text}`

// ============================================================================
// News Summarization
// ============================================================================

// SummarizeNewsPrompt asks for a 100 to 150 character summary of an article.
// Placeholders: {json_schema}, {news_text}
const SummarizeNewsPrompt = `請為以下新聞撰寫摘要。

【規則】
- 字數介於 100 到 150 字之間（含標點符號）
- 以繁體中文撰寫，保留關鍵數字、公司名稱與時間
- 不加入評論、預測或投資建議
- 使用單一段落，不可分點

【輸出格式】
請依照以下 JSON Schema 回覆：
{json_schema}

【新聞內容】
{news_text}`
