package main

// Compiled modules.
import (
	_ "github.com/flemzord/policychat/internal/gateway"
	_ "github.com/flemzord/policychat/modules/provider/anthropic"
	_ "github.com/flemzord/policychat/modules/provider/openai"
	_ "github.com/flemzord/policychat/modules/retriever/bleve"
	_ "github.com/flemzord/policychat/modules/retriever/sqlite"
	_ "github.com/flemzord/policychat/modules/store/memory"
	_ "github.com/flemzord/policychat/modules/store/redis"
)
