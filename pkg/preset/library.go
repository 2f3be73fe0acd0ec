package preset

// Group is a named set of style tags that work well together.
type Group struct {
	Name string   `json:"name"`
	Tags []Option `json:"tags"`
}

// Category groups style tag sets by genre family.
type Category struct {
	Name   string  `json:"name"`
	Groups []Group `json:"groups"`
}

var Library = []Category{
	{
		Name: "国风/史诗 (Chinese Epic)",
		Groups: []Group{
			{"史诗国风 (Epic Chinese)", []Option{
				{"史诗国风", "Epic Chinese Style"}, {"电影感", "Cinematic"}, {"管弦乐", "Orchestral"},
				{"大气", "Atmospheric"}, {"雄浑男声", "Powerful Male Vocals"}, {"战鼓", "War Drums"},
				{"笛子", "Dizi"},
			}},
			{"苍凉叙事 (Narrative)", []Option{
				{"中国风", "Chinese Style"}, {"古风", "Ancient Style"}, {"叙事感", "Narrative"},
				{"忧郁", "Melancholy"}, {"深沉男中音", "Deep Male Baritone"}, {"古琴", "Guqin"},
				{"弦乐", "Strings"},
			}},
			{"摇滚国风 (Rock Chinese)", []Option{
				{"国风摇滚", "Chinese Style Rock"}, {"史诗摇滚", "Epic Rock"}, {"交响金属", "Symphonic Metal"},
				{"力量金属", "Power Metal"}, {"强劲男声", "Strong Male Vocals"}, {"电吉他", "Electric Guitar"},
				{"琵琶", "Pipa"},
			}},
		},
	},
	{
		Name: "电子/复古 (Electronic/Retro)",
		Groups: []Group{
			{"复古合成器 (Synthwave)", []Option{
				{"80s Synthwave", "80s Synthwave"}, {"复古未来", "Retro Futuristic"},
				{"强劲贝斯", "Driving Bassline"}, {"史诗合成器", "Epic Synthesizer Melody"},
				{"闪亮Pad", "Shimmering Pads"}, {"鼓机", "Drum Machine"},
				{"夜间飙车", "Driving through Miami at night"},
			}},
			{"Lofi嘻哈 (Lofi Hip Hop)", []Option{
				{"Lofi Hip Hop", "Lofi Hip Hop"}, {"Chill Beat", "Chill Beat"},
				{"柔和钢琴", "Mellow Piano Chords"}, {"黑胶爆豆", "Vinyl Crackle"},
				{"雨声", "Rain Sounds"}, {"放松", "Relaxing"},
			}},
			{"未来贝斯 (Future Bass)", []Option{
				{"Future Bass", "Future Bass"}, {"活力", "Energetic"}, {"卡哇伊", "Kawaii"},
				{"超级锯齿波", "Supersaw Chords"}, {"闪亮琶音", "Sparkling Arpeggios"},
				{"可爱女声切片", "Cute Female Vocal Chops"}, {"振奋Drop", "Uplifting Drop"},
			}},
		},
	},
	{
		Name: "摇滚/金属 (Rock/Metal)",
		Groups: []Group{
			{"史诗另类摇滚 (Epic Alt Rock)", []Option{
				{"另类摇滚", "Alternative Rock"}, {"圣歌感", "Anthemic"}, {"强力男声", "Powerful Male Vocals"},
				{"高亢Riff", "Soaring Electric Guitar Riffs"}, {"强劲鼓点", "Driving Drums"},
				{"体育场摇滚", "Stadium Rock Feel"}, {"能量爆发", "Chorus Explodes"},
			}},
			{"民谣金属 (Folk Metal)", []Option{
				{"民谣金属", "Folk Metal"}, {"战斗主题", "Epic Battle Theme"},
				{"重失真吉他", "Heavy Distorted Guitars"}, {"冲击节拍", "Fast Blast Beats"},
				{"传统长笛", "Traditional Flute"}, {"小提琴", "Violin"}, {"嘶吼", "Harsh Growling Vocals"},
			}},
		},
	},
	{
		Name: "流行/原声 (Pop/Acoustic)",
		Groups: []Group{
			{"清新民谣 (Acoustic Folk)", []Option{
				{"原声民谣", "Acoustic Folk"}, {"温柔", "Gentle"}, {"男女对唱", "Male and Female Duet"},
				{"和声", "Harmony"}, {"木吉他指弹", "Simple Acoustic Guitar Fingerpicking"},
				{"亲密感", "Intimate"},
			}},
			{"现代K-Pop", []Option{
				{"K-Pop", "K-Pop"}, {"欢快舞曲", "Upbeat Dance-Pop"}, {"抓耳副歌", "Catchy Chorus"},
				{"精良制作", "Slick Production"}, {"男团人声", "Male Group Vocals"},
				{"活力说唱", "Energetic Rap Verse"}, {"泡泡糖流行", "Bubblegum Pop"},
			}},
		},
	},
	{
		Name: "电影/氛围 (Cinematic)",
		Groups: []Group{
			{"宏大配乐 (Epic Orchestral)", []Option{
				{"史诗电影", "Epic Cinematic"}, {"管弦乐", "Orchestral"}, {"宏大合唱", "Powerful Choir"},
				{"高亢弦乐", "Soaring Strings"}, {"雷鸣打击乐", "Thunderous Percussion"},
				{"铜管号角", "Brass Fanfare"}, {"冒险奇幻", "Adventure Fantasy"},
			}},
			{"赛博朋克 (Cyberpunk)", []Option{
				{"赛博朋克", "Cyberpunk"}, {"黑暗氛围", "Dark Ambient"}, {"霓虹城市", "Neon City"},
				{"反乌托邦", "Dystopian"}, {"脉动贝斯", "Pulsating Synth Bass"},
				{"故障音效", "Glitchy Effects"}, {"未来音景", "Futuristic Soundscape"},
			}},
		},
	},
}

// Phrases are narrative building blocks in english with a localized label.
var Phrases = []Option{
	{"充满灵魂且内省的都市民谣", "A soulful and introspective Urban Folk ballad"},
	{"温暖磁性且具叙事感的男声", "Features a warm, magnetic, storytelling male vocal"},
	{"以木吉他和钢琴为主导", "Led by acoustic guitar and piano"},
	{"副歌加入温暖大提琴与细腻弦乐", "With a warm cello and subtle string section building in the chorus"},
	{"充满灵魂的华语流行抒情歌", "A soulful and introspective C-Pop ballad"},
	{"成熟磁性、略带沙哑的叙事男声", "Featuring a mature, magnetic, storytelling male vocal with a slightly raspy texture"},
	{"音乐感觉像是一场亲密的对话", "The music feels like an intimate conversation"},
	{"以钢琴、木吉他和温暖弦乐为背景", "Set to a backdrop of piano, acoustic guitar, and warm strings"},
	{"慵懒迷人的中低音女声", "Sultry female alto vocals with lazy, charming phrasing"},
	{"史诗般的管弦乐铺陈伴随雷鸣打击乐", "Epic orchestral build-up with thunderous percussion"},
	{"空灵女声漂浮在氛围感合成器之上", "Ethereal female vocals floating over atmospheric pads"},
	{"激进的失真贝斯跌入重型节拍", "Aggressive distorted bass dropping into a heavy beat"},
	{"传统中国乐器融合现代Trap节拍", "Traditional Chinese instruments blending with modern trap beats"},
}
