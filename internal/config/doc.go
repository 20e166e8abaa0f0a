// Package config はゲートウェイの起動時設定を提供する。
//
// 環境変数（および任意のYAMLルート定義ファイル）を起動時に一度だけ読み込み、
// プロセスの生存期間中は変更されない Config を構築する。
// リクエスト処理中に環境変数を直接参照することはない。
package config
