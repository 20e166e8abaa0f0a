// Package gateway はSovereign NodeのAPI Gatewayの内部実装を提供する。
//
// 固定プロバイダー（OpenAI、Claude、Gemini、NewsAPI、Alpha Vantage）と
// 設定で定義されたカスタムルートへのリクエストを、認証情報を付与して転送し、
// 上流APIのレスポンスをそのまま呼び出し元に返す。
// ルーティングテーブルは起動時に構築された config.Config から参照し、
// リクエスト間で共有する可変状態は持たない。
package gateway
