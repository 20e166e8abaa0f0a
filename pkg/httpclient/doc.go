// Package httpclient は上流APIへのリクエスト送信に使用するHTTPクライアントを提供する。
//
// ゲートウェイが上流APIを呼び出す際の Request / Response を定義し、
// ステータスコードとボディだけを扱う狭い中継契約に揃える。
// 2xx以外の応答は UpstreamError として返す。
package httpclient
